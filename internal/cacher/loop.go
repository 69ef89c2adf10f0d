package cacher

import (
	"log/slog"
	"sort"
	"time"

	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/ledger"
	"github.com/rodlie/autocache/internal/render"
	"github.com/rodlie/autocache/internal/timecode"
)

// process routes one event to its handler. Called only from the scheduling
// goroutine.
func (c *AutoCacher) process(e event) {
	switch ev := e.(type) {
	case evSetViewer:
		c.handleSetViewer(ev)
	case evGraphChange:
		c.handleGraphChange(ev)
	case evSingleFrame:
		c.handleSingleFrame(ev)
	case evSetPaused:
		c.handleSetPaused(ev)
	case evForceRange:
		c.handleForceRange(ev)
	case evSetPlayhead:
		c.handleSetPlayhead(ev)
	case evRequeue:
		c.handleRequeue()
	case evCancelMedia:
		c.handleCancelMedia(ev)
	case evSetAudioFormat:
		c.handleSetAudioFormat(ev)
	case evHashesDone:
		c.handleHashesDone(ev)
	case evVideoRendered:
		c.handleVideoRendered(ev)
	case evAudioRendered:
		c.handleAudioRendered(ev)
	case evVideoDownloaded:
		c.handleVideoDownloaded(ev)
	default:
		slog.Warn("unhandled event", "type", e)
	}
}

func (c *AutoCacher) handleSetViewer(ev evSetViewer) {
	if c.unwatch != nil {
		c.unwatch()
		c.unwatch = nil
	}
	c.dropAllWork()

	c.viewer = ev.viewer
	c.mirror = nil
	c.customRange = nil
	c.hasWindow = false
	c.playhead = timecode.Rational{}

	if ev.viewer == nil {
		c.emitTrace(TraceEvent{Op: OpDetach})
		return
	}

	v := ev.viewer
	c.mirror = v.Graph.MirrorOf(v.Output)
	c.unwatch = v.Graph.Watch(func(ch graph.Change) {
		c.queue.enqueue(evGraphChange{change: ch})
	})
	c.audioFormat = v.Format.AudioFormat

	// Nothing is trusted about a freshly attached sequence.
	if (timecode.Rational{}).Less(v.Format.Duration) {
		full := timecode.NewRange(timecode.Rational{}, v.Format.Duration)
		c.dirtyVideo.Add(full)
		c.dirtyAudio.Add(full)
		c.videoLedger.Invalidate(full)
		c.audioLedger.Invalidate(full)
	}

	c.updateWindow()
	c.emitTrace(TraceEvent{Op: OpAttach})
	c.tryRender()
}

// dropAllWork detaches every in-flight task and forgets all per-viewer
// scheduling state. Detached tasks still resolve their tickets; the
// completion handlers release their borrows and skip everything else.
func (c *AutoCacher) dropAllWork() {
	for _, t := range c.videoTasks {
		t.ticket.Cancel()
	}
	for _, t := range c.audioTasks {
		t.ticket.Cancel()
	}
	for _, t := range c.hashTasks.tickets() {
		t.Cancel()
	}
	for _, t := range c.downloadTasks.tickets() {
		t.Cancel()
	}
	c.videoTasks = make(map[string]*videoTask)
	c.videoByKey = make(map[string]*videoTask)
	c.audioTasks = make(map[string]*audioTask)
	c.hashTasks.detachAll()
	c.downloadTasks.detachAll()
	c.hashPending = make(map[string]bool)
	c.hashKnown = make(map[string]hashInfo)

	if c.singleFrame != nil {
		c.singleFrame.ticket.ResolveEmpty()
		c.singleFrame = nil
	}

	c.dirtyVideo.Clear()
	c.dirtyAudio.Clear()
	c.videoLedger = ledger.New()
	c.audioLedger = ledger.New()
	c.audioCached.Clear()
	c.conformPending.Clear()

	if c.requeueTimer != nil {
		c.requeueTimer.Stop()
		c.requeueTimer = nil
	}
}

func (c *AutoCacher) handleGraphChange(ev evGraphChange) {
	if c.mirror == nil {
		return
	}
	ch := ev.change
	c.mirror.Enqueue(ch.Edit)

	if ch.Video != nil {
		c.dirtyVideo.Add(*ch.Video)
		c.videoLedger.Invalidate(*ch.Video)
		c.emitTrace(TraceEvent{Op: OpInvalidate, Media: "video", Range: ch.Video.String()})
	}
	if ch.Audio != nil {
		c.dirtyAudio.Add(*ch.Audio)
		c.audioLedger.Invalidate(*ch.Audio)
		c.audioCached.Remove(*ch.Audio)
		c.conformPending.Remove(*ch.Audio)
		c.emitTrace(TraceEvent{Op: OpInvalidate, Media: "audio", Range: ch.Audio.String()})
	}
	c.tryRender()
}

func (c *AutoCacher) handleSingleFrame(ev evSingleFrame) {
	// A newer interactive request supersedes a queued one; the old caller
	// gets an empty outcome rather than a stale frame.
	if c.singleFrame != nil {
		c.singleFrame.ticket.ResolveEmpty()
	}
	if c.viewer == nil {
		ev.ticket.ResolveEmpty()
		return
	}
	c.singleFrame = &ev
	c.tryRender()
}

func (c *AutoCacher) handleSetPaused(ev evSetPaused) {
	if c.paused.Load() == ev.paused {
		return
	}
	c.paused.Store(ev.paused)
	if ev.paused {
		c.emitTrace(TraceEvent{Op: OpPause})
		return
	}
	c.emitTrace(TraceEvent{Op: OpResume})
	c.tryRender()
}

func (c *AutoCacher) handleForceRange(ev evForceRange) {
	if ev.clear {
		c.customRange = nil
	} else {
		r := ev.r
		c.customRange = &r
	}
	c.tryRender()
}

func (c *AutoCacher) handleSetPlayhead(ev evSetPlayhead) {
	c.playhead = ev.playhead

	// Debounce: while the user scrubs, keep resetting the timer so the
	// window only chases a playhead that has come to rest.
	if c.requeueTimer != nil {
		c.requeueTimer.Stop()
	}
	c.requeueTimer = time.AfterFunc(c.profile.RequeueDelay, func() {
		c.queue.enqueue(evRequeue{})
	})
}

func (c *AutoCacher) handleRequeue() {
	if c.viewer == nil {
		return
	}
	c.updateWindow()
	c.tryRender()
}

// updateWindow recomputes the playhead-relative auto-cache window, clamped
// to the sequence bounds.
func (c *AutoCacher) updateWindow() {
	var zero timecode.Rational
	start := c.playhead.Sub(c.profile.PlayheadBehind).Max(zero)
	end := c.playhead.Add(c.profile.PlayheadAhead).Min(c.viewer.Format.Duration)
	if !start.Less(end) {
		c.hasWindow = false
		return
	}
	c.cacheRange = timecode.NewRange(start, end)
	c.hasWindow = true
	c.emitTrace(TraceEvent{Op: OpWindow, Range: c.cacheRange.String()})
}

func (c *AutoCacher) handleCancelMedia(ev evCancelMedia) {
	var tickets []*render.Ticket

	switch ev.media {
	case render.MediaVideo:
		for _, t := range c.videoTasks {
			t.ticket.Cancel()
			tickets = append(tickets, t.ticket)
		}
		c.videoTasks = make(map[string]*videoTask)
		c.videoByKey = make(map[string]*videoTask)

		for _, t := range c.hashTasks.tickets() {
			t.Cancel()
			tickets = append(tickets, t)
		}
		c.hashTasks.detachAll()
		c.hashPending = make(map[string]bool)

		for _, t := range c.downloadTasks.tickets() {
			t.Cancel()
			tickets = append(tickets, t)
		}
		c.downloadTasks.detachAll()

	case render.MediaAudio:
		for _, t := range c.audioTasks {
			t.ticket.Cancel()
			tickets = append(tickets, t.ticket)
		}
		c.audioTasks = make(map[string]*audioTask)
	}

	c.emitTrace(TraceEvent{Op: OpCancel, Media: ev.media.String()})
	ev.reply <- tickets
}

func (c *AutoCacher) handleSetAudioFormat(ev evSetAudioFormat) {
	if ev.format == c.audioFormat {
		return
	}
	c.audioFormat = ev.format
	if c.viewer != nil {
		c.viewer.Format.AudioFormat = ev.format
	}

	// Everything cached in the old format stays usable as source material
	// for an in-place conversion; queue it all for conform.
	c.conformPending = c.audioCached.Clone()
	c.emitTrace(TraceEvent{Op: OpConformQueued, Media: "audio"})
	c.tryRender()
}

func (c *AutoCacher) handleHashesDone(ev evHashesDone) {
	task := ev.task
	task.mirror.Release()

	tracked := c.hashTasks.detach(task.ticket.ID())
	if !tracked {
		c.tryRender()
		return
	}
	for _, t := range task.times {
		delete(c.hashPending, t.String())
	}

	results, _ := task.ticket.Result().([]hashResult)
	for i, res := range results {
		if c.videoLedger.IsTimeStale(res.time, task.gens[i]) {
			continue
		}
		if res.exists {
			// Identical content already cached under this hash; adopt it
			// without rendering.
			if err := c.store.AssociateFrame(res.time, res.hash); err != nil {
				slog.Warn("frame association failed", "time", res.time, "err", err)
				continue
			}
			c.markFrameCached(res.time)
			c.emitTrace(TraceEvent{Op: OpHashHit, Time: res.time.String(), Hash: res.hash})
			continue
		}
		c.hashKnown[res.time.String()] = hashInfo{time: res.time, hash: res.hash, gen: task.gens[i]}
	}
	c.tryRender()
}

func (c *AutoCacher) handleVideoRendered(ev evVideoRendered) {
	task := ev.task
	task.mirror.Release()

	id := task.ticket.ID()
	if c.videoTasks[id] != task {
		c.tryRender()
		return
	}
	delete(c.videoTasks, id)
	k := key(task.time, task.textureOnly)
	if c.videoByKey[k] == task {
		delete(c.videoByKey, k)
	}

	switch {
	case !task.ticket.HasResult():
		// Cancelled or failed; the frame stays dirty and requeues.

	case c.videoLedger.IsTimeStale(task.time, task.gen):
		c.emitTrace(TraceEvent{Op: OpStaleDrop, Media: "video", Time: task.time.String()})

	case task.textureOnly:
		// Interactive result only; it was delivered through the ticket
		// and never touches the cache.

	default:
		data, ok := task.ticket.Result().([]byte)
		if !ok {
			slog.Warn("video render produced unexpected result type", "time", task.time)
			break
		}
		c.dispatchDownload(task, data)
	}
	c.tryRender()
}

// dispatchDownload writes a rendered frame to the store on a worker
// goroutine. The association with the frame time is committed back on the
// loop after a final staleness check.
func (c *AutoCacher) dispatchDownload(task *videoTask, data []byte) {
	dl := &downloadTask{
		ticket: render.NewTicket(),
		time:   task.time,
		hash:   task.hash,
		gen:    task.gen,
	}
	c.downloadTasks.add(dl.ticket.ID(), dl)
	c.emitTrace(TraceEvent{Op: OpDownloadDispatch, Time: dl.time.String(), Hash: dl.hash})

	go func() {
		if dl.ticket.IsCancelled() {
			dl.ticket.ResolveEmpty()
			return
		}
		if err := c.store.SaveFrame(dl.hash, data); err != nil {
			slog.Warn("frame cache write failed", "hash", dl.hash, "err", err)
			dl.ticket.ResolveEmpty()
			return
		}
		dl.ticket.Resolve(len(data))
	}()

	dl.ticket.Listen(func(*render.Ticket) {
		c.queue.enqueue(evVideoDownloaded{task: dl})
	})
}

func (c *AutoCacher) handleVideoDownloaded(ev evVideoDownloaded) {
	task := ev.task
	tracked := c.downloadTasks.detach(task.ticket.ID())
	if !tracked || !task.ticket.HasResult() {
		return
	}
	// Re-check: the graph may have changed while the write was in flight.
	if c.videoLedger.IsTimeStale(task.time, task.gen) {
		c.emitTrace(TraceEvent{Op: OpStaleDrop, Media: "video", Time: task.time.String()})
		return
	}
	if err := c.store.AssociateFrame(task.time, task.hash); err != nil {
		slog.Warn("frame association failed", "time", task.time, "err", err)
		return
	}
	c.markFrameCached(task.time)
	c.emitTrace(TraceEvent{Op: OpFrameCached, Time: task.time.String(), Hash: task.hash})
	c.adoptSiblings(task.hash)
	c.tryRender()
}

// adoptSiblings associates every other dirty frame whose content hashed to
// h with the newly cached data, so duplicated content renders once.
func (c *AutoCacher) adoptSiblings(h string) {
	var adopt []hashInfo
	for _, info := range c.hashKnown {
		if info.hash == h && !c.videoLedger.IsTimeStale(info.time, info.gen) {
			adopt = append(adopt, info)
		}
	}
	sort.Slice(adopt, func(i, j int) bool { return adopt[i].time.Less(adopt[j].time) })
	for _, info := range adopt {
		if err := c.store.AssociateFrame(info.time, h); err != nil {
			slog.Warn("frame association failed", "time", info.time, "err", err)
			continue
		}
		c.markFrameCached(info.time)
		c.emitTrace(TraceEvent{Op: OpHashHit, Time: info.time.String(), Hash: h})
	}
}

// markFrameCached clears one frame cell from the dirty set.
func (c *AutoCacher) markFrameCached(t timecode.Rational) {
	tb := c.viewer.Format.Timebase
	start := t.FloorTo(tb)
	c.dirtyVideo.Remove(timecode.NewRange(start, start.Add(tb)))
	delete(c.hashKnown, t.String())
}

func (c *AutoCacher) handleAudioRendered(ev evAudioRendered) {
	task := ev.task
	task.mirror.Release()

	id := task.ticket.ID()
	if c.audioTasks[id] != task {
		c.tryRender()
		return
	}
	delete(c.audioTasks, id)

	switch {
	case !task.ticket.HasResult():

	case c.audioLedger.IsStale(task.r, task.gen):
		c.emitTrace(TraceEvent{Op: OpStaleDrop, Media: "audio", Range: task.r.String()})

	case task.conform:
		if err := c.store.SetAudioFormat(task.r, c.audioFormat); err != nil {
			slog.Warn("audio conform commit failed", "range", task.r, "err", err)
			break
		}
		c.emitTrace(TraceEvent{Op: OpConformDone, Range: task.r.String()})

	default:
		data, ok := task.ticket.Result().([]byte)
		if !ok {
			slog.Warn("audio render produced unexpected result type", "range", task.r)
			break
		}
		if err := c.store.SaveAudio(task.r, data, c.audioFormat); err != nil {
			slog.Warn("audio cache write failed", "range", task.r, "err", err)
			break
		}
		c.dirtyAudio.Remove(task.r)
		c.audioCached.Add(task.r)
		c.emitTrace(TraceEvent{Op: OpAudioCached, Range: task.r.String()})
	}
	c.tryRender()
}
