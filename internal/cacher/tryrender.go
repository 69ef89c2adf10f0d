package cacher

import (
	"log/slog"

	"github.com/rodlie/autocache/internal/fingerprint"
	"github.com/rodlie/autocache/internal/ledger"
	"github.com/rodlie/autocache/internal/render"
	"github.com/rodlie/autocache/internal/timecode"
)

// tryRender is the scheduling decision point, run after every event that
// could change what should be in flight. It dispatches at most: one queued
// single-frame render, all due audio and conform work, renders for frames
// with known hashes up to the concurrency cap, and one hash batch for the
// rest of the dirty window.
func (c *AutoCacher) tryRender() {
	if c.viewer == nil || c.mirror == nil {
		return
	}

	// Staged graph edits must land before any new task borrows the
	// mirror. While in-flight work pins the mirror with edits queued
	// behind it, dispatching would render an outdated graph.
	if !c.mirror.TryApplyPending() && c.mirror.PendingCount() > 0 {
		return
	}

	c.dispatchSingleFrame()

	if c.paused.Load() {
		return
	}

	window, ok := c.window()
	if !ok {
		return
	}

	c.dispatchAudio(window)
	c.dispatchConform()
	c.dispatchVideo(window)
}

// window returns the range background caching is currently confined to:
// the forced range when one is set, else the playhead-relative window.
func (c *AutoCacher) window() (timecode.TimeRange, bool) {
	if c.customRange != nil {
		return *c.customRange, true
	}
	if c.hasWindow {
		return c.cacheRange, true
	}
	return timecode.TimeRange{}, false
}

// dispatchSingleFrame serves the queued interactive request. It ignores
// the pause state and the concurrency cap; responsiveness beats tidiness
// here. Equal in-flight work is joined instead of duplicated.
func (c *AutoCacher) dispatchSingleFrame() {
	sf := c.singleFrame
	if sf == nil {
		return
	}
	c.singleFrame = nil

	t := sf.time.FloorTo(c.viewer.Format.Timebase)

	if running, ok := c.videoByKey[key(t, true)]; ok {
		running.ticket.AttachPassthrough(sf.ticket)
		return
	}
	if running, ok := c.videoByKey[key(t, false)]; ok {
		running.ticket.AttachPassthrough(sf.ticket)
		return
	}

	c.mirror.Borrow()
	ticket := c.backend.RenderFrame(render.Request{
		Mirror:      c.mirror,
		Time:        t,
		Media:       render.MediaVideo,
		Prioritize:  sf.prioritize,
		TextureOnly: true,
	})
	task := &videoTask{
		ticket:      ticket,
		mirror:      c.mirror,
		time:        t,
		gen:         c.videoLedger.StampTime(t),
		textureOnly: true,
	}
	c.videoTasks[ticket.ID()] = task
	c.videoByKey[key(t, true)] = task
	ticket.AttachPassthrough(sf.ticket)
	ticket.Listen(func(*render.Ticket) {
		c.queue.enqueue(evVideoRendered{task: task})
	})
	c.emitTrace(TraceEvent{Op: OpSingleFrame, Time: t.String()})
}

// dispatchAudio renders every dirty audio chunk inside the window that is
// not already in flight. Audio is cheap relative to video and is not
// throttled by the render cap.
func (c *AutoCacher) dispatchAudio(window timecode.TimeRange) {
	due := c.dirtyAudio.Intersect(window)
	for _, r := range due.Ranges() {
		for _, chunk := range c.chunks(r) {
			if c.audioInFlight(chunk) {
				continue
			}
			c.dispatchAudioTask(chunk, false)
		}
	}
}

// chunks splits a range along the profile's audio chunk grid.
func (c *AutoCacher) chunks(r timecode.TimeRange) []timecode.TimeRange {
	step := c.profile.AudioChunk
	if !(timecode.Rational{}).Less(step) {
		return []timecode.TimeRange{r}
	}
	var out []timecode.TimeRange
	s := r.Start()
	for s.Less(r.End()) {
		next := s.FloorTo(step).Add(step)
		e := next.Min(r.End())
		out = append(out, timecode.NewRange(s, e))
		s = e
	}
	return out
}

func (c *AutoCacher) audioInFlight(r timecode.TimeRange) bool {
	for _, t := range c.audioTasks {
		if t.r.Overlaps(r) {
			return true
		}
	}
	return false
}

func (c *AutoCacher) dispatchAudioTask(r timecode.TimeRange, conform bool) {
	c.mirror.Borrow()
	req := render.Request{
		Mirror: c.mirror,
		Range:  r,
		Media:  render.MediaAudio,
	}
	var ticket *render.Ticket
	op := OpAudioDispatch
	if conform {
		ticket = c.backend.ConformAudio(req)
		op = OpConformDispatch
	} else {
		ticket = c.backend.RenderAudio(req)
	}
	task := &audioTask{
		ticket:  ticket,
		mirror:  c.mirror,
		r:       r,
		gen:     c.audioLedger.Stamp(r),
		conform: conform,
	}
	c.audioTasks[ticket.ID()] = task
	ticket.Listen(func(*render.Ticket) {
		c.queue.enqueue(evAudioRendered{task: task})
	})
	c.emitTrace(TraceEvent{Op: op, Range: r.String()})
}

// dispatchConform drains the conform queue. Conform runs everywhere, not
// just inside the window; a format mismatch makes playback silent no matter
// where the playhead is.
func (c *AutoCacher) dispatchConform() {
	if c.conformPending.IsEmpty() {
		return
	}
	pending := c.conformPending.Clone()
	for _, r := range pending.Ranges() {
		if c.audioInFlight(r) {
			continue
		}
		c.conformPending.Remove(r)
		c.dispatchAudioTask(r, true)
	}
}

// dispatchVideo walks the dirty frames inside the window. Frames with a
// fresh known hash become renders, up to the concurrency cap; frames with
// no hash yet are gathered into one hash batch.
func (c *AutoCacher) dispatchVideo(window timecode.TimeRange) {
	due := c.dirtyVideo.Intersect(window)
	if due.IsEmpty() {
		return
	}

	active := c.activeVideoRenders()
	var toHash []timecode.Rational

	it := timecode.NewFrameIterator(&due, c.viewer.Format.Timebase)
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		if _, running := c.videoByKey[key(t, false)]; running {
			continue
		}
		// The frame stays dirty until its cache write commits; a time
		// with an outstanding download ticket is already covered.
		if c.downloadTasks.anyMatch(func(d *downloadTask) bool { return d.time.Equal(t) }) {
			continue
		}

		info, known := c.hashKnown[t.String()]
		if known && c.videoLedger.IsTimeStale(t, info.gen) {
			delete(c.hashKnown, t.String())
			known = false
		}

		if known {
			// Content already being rendered or written for another
			// frame time; this one adopts the result on commit.
			if c.hashInFlight(info.hash) {
				continue
			}
			if active >= c.profile.MaxConcurrentRenders {
				continue
			}
			c.dispatchVideoRender(t, info)
			active++
			continue
		}

		if !c.hashPending[t.String()] {
			toHash = append(toHash, t)
		}
	}

	if len(toHash) > 0 {
		c.dispatchHashBatch(toHash)
	}
}

func (c *AutoCacher) hashInFlight(h string) bool {
	for _, t := range c.videoTasks {
		if !t.textureOnly && t.hash == h {
			return true
		}
	}
	return c.downloadTasks.anyMatch(func(d *downloadTask) bool { return d.hash == h })
}

func (c *AutoCacher) activeVideoRenders() int {
	n := 0
	for _, t := range c.videoTasks {
		if !t.textureOnly {
			n++
		}
	}
	return n
}

func (c *AutoCacher) dispatchVideoRender(t timecode.Rational, info hashInfo) {
	delete(c.hashKnown, t.String())

	c.mirror.Borrow()
	ticket := c.backend.RenderFrame(render.Request{
		Mirror: c.mirror,
		Time:   t,
		Media:  render.MediaVideo,
	})
	task := &videoTask{
		ticket: ticket,
		mirror: c.mirror,
		time:   t,
		hash:   info.hash,
		gen:    info.gen,
	}
	c.videoTasks[ticket.ID()] = task
	c.videoByKey[key(t, false)] = task
	ticket.Listen(func(*render.Ticket) {
		c.queue.enqueue(evVideoRendered{task: task})
	})
	c.emitTrace(TraceEvent{Op: OpRenderDispatch, Time: t.String(), Hash: info.hash})
}

// dispatchHashBatch fingerprints a set of frame times on a worker
// goroutine and checks the store for existing content. The mirror stays
// borrowed for the duration; hashing only reads it.
func (c *AutoCacher) dispatchHashBatch(times []timecode.Rational) {
	gens := make([]ledger.Generation, len(times))
	for i, t := range times {
		c.hashPending[t.String()] = true
		gens[i] = c.videoLedger.StampTime(t)
	}

	c.mirror.Borrow()
	task := &hashTask{
		ticket: render.NewTicket(),
		mirror: c.mirror,
		times:  times,
		gens:   gens,
	}
	c.hashTasks.add(task.ticket.ID(), task)
	c.emitTrace(TraceEvent{Op: OpHashDispatch, Range: hashSpan(times)})

	go func() {
		results := make([]hashResult, 0, len(task.times))
		for _, t := range task.times {
			if task.ticket.IsCancelled() {
				break
			}
			h, err := fingerprint.Frame(task.mirror.FramePayload(t))
			if err != nil {
				slog.Warn("frame fingerprint failed", "time", t, "err", err)
				continue
			}
			exists, err := c.store.HasFrame(h)
			if err != nil {
				slog.Warn("frame lookup failed", "hash", h, "err", err)
				exists = false
			}
			results = append(results, hashResult{time: t, hash: h, exists: exists})
		}
		task.ticket.Resolve(results)
	}()

	task.ticket.Listen(func(*render.Ticket) {
		c.queue.enqueue(evHashesDone{task: task})
	})
}

// hashSpan renders a compact trace label for a hash batch.
func hashSpan(times []timecode.Rational) string {
	if len(times) == 0 {
		return ""
	}
	return times[0].String() + ".." + times[len(times)-1].String()
}
