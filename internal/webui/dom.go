//go:build js && wasm

package webui

import (
	"errors"
	"fmt"
	"strconv"
	"syscall/js"

	"github.com/felixgeelhaar/listenex/internal/engine"
)

// ErrMissingAnchor is returned when the page lacks an element the renderer
// needs.
var ErrMissingAnchor = errors.New("missing DOM anchor")

// handlers receives the gestures the renderer wires up.
type handlers struct {
	drop     func(data string, target engine.Slot)
	toPool   func(data string)
	toggle   func(itemID int)
	validate func()
	volume   func(v float64)
}

// renderer projects engine views into the page.
type renderer struct {
	doc js.Value
	h   handlers

	title, groups, pool, validate, score, volume, volumeValue, status js.Value

	slots     map[engine.Slot]js.Value
	poolItems map[int]js.Value

	// static listeners live until cleanup; the others are tied to nodes
	// that a re-render replaces.
	static    []listener
	layout    []listener
	slotFuncs map[engine.Slot][]listener
	itemFuncs map[int][]listener
}

// listener is one registered DOM event handler.
type listener struct {
	el    js.Value
	event string
	fn    js.Func
}

func (l listener) release() {
	l.el.Call("removeEventListener", l.event, l.fn)
	l.fn.Release()
}

func releaseAll(ls []listener) {
	for _, l := range ls {
		l.release()
	}
}

func newRenderer(doc js.Value, h handlers) (*renderer, error) {
	r := &renderer{
		doc:       doc,
		h:         h,
		slots:     make(map[engine.Slot]js.Value),
		poolItems: make(map[int]js.Value),
		slotFuncs: make(map[engine.Slot][]listener),
		itemFuncs: make(map[int][]listener),
	}
	anchors := []struct {
		id  string
		dst *js.Value
	}{
		{idGroups, &r.groups},
		{idPool, &r.pool},
		{idValidate, &r.validate},
		{idScore, &r.score},
	}
	for _, a := range anchors {
		el, err := r.byID(a.id)
		if err != nil {
			return nil, err
		}
		*a.dst = el
	}
	// Optional anchors.
	r.title, _ = r.byID(idTitle)
	r.volume, _ = r.byID(idVolume)
	r.volumeValue, _ = r.byID(idVolumeValue)
	r.status, _ = r.byID(idStatus)

	r.bindStatic()
	return r, nil
}

func (r *renderer) byID(id string) (js.Value, error) {
	el := r.doc.Call("getElementById", id)
	if el.IsNull() || el.IsUndefined() {
		return js.Value{}, fmt.Errorf("%w: #%s", ErrMissingAnchor, id)
	}
	return el, nil
}

func (r *renderer) on(el js.Value, event string, fn func(ev js.Value)) listener {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		var ev js.Value
		if len(args) > 0 {
			ev = args[0]
		}
		fn(ev)
		return nil
	})
	el.Call("addEventListener", event, f)
	return listener{el: el, event: event, fn: f}
}

func (r *renderer) bindStatic() {
	r.static = append(r.static, r.on(r.validate, "click", func(js.Value) { r.h.validate() }))

	r.static = append(r.static,
		r.on(r.pool, "dragover", func(ev js.Value) { ev.Call("preventDefault") }),
		r.on(r.pool, "drop", func(ev js.Value) {
			ev.Call("preventDefault")
			r.h.toPool(ev.Get("dataTransfer").Call("getData", "text/plain").String())
		}),
	)

	if r.volume.Truthy() {
		r.static = append(r.static, r.on(r.volume, "input", func(ev js.Value) {
			r.h.volume(parseVolume(ev.Get("target").Get("value").String()))
		}))
	}
}

// render replaces the whole projection with v.
func (r *renderer) render(v engine.View) {
	r.releaseNodes()
	r.groups.Set("innerHTML", "")
	r.pool.Set("innerHTML", "")

	if r.title.Truthy() {
		r.title.Set("textContent", v.Title)
	}
	r.doc.Set("title", v.Title)

	for _, g := range v.Groups {
		r.groups.Call("appendChild", r.groupNode(g))
	}
	for _, it := range v.Pool {
		r.addPoolItem(it)
	}
	r.renderPhase(v)
	r.renderVolume(v.Playback.Volume)
}

// apply patches the projection from prev to next.
func (r *renderer) apply(prev, next engine.View) {
	d := engine.Diff(prev, next)
	if d.Rebuild {
		r.render(next)
		return
	}
	for _, s := range d.Slots {
		r.renderSlot(s)
	}
	for _, id := range d.PoolRemoved {
		r.removePoolItem(id)
	}
	for _, it := range d.PoolChanged {
		r.replacePoolItem(it)
	}
	for _, it := range d.PoolAdded {
		r.addPoolItem(it)
	}
	if d.PhaseChanged || d.ScoreChanged || d.HiddenChanged {
		r.renderPhase(next)
	}
	if d.PlaybackChanged {
		r.renderVolume(next.Playback.Volume)
	}
}

func (r *renderer) groupNode(g engine.GroupView) js.Value {
	panel := r.doc.Call("createElement", "div")
	panel.Set("className", "group")
	panel.Get("dataset").Set("groupId", strconv.Itoa(g.ID))

	if g.BackgroundImage != "" {
		img := r.doc.Call("createElement", "img")
		img.Set("className", "group-image")
		img.Set("src", g.BackgroundImage)
		img.Set("alt", fmt.Sprintf("Group %d", g.ID))
		panel.Call("appendChild", img)
	}

	zone := r.doc.Call("createElement", "div")
	zone.Set("className", "drop-zone")
	for _, s := range g.Slots {
		el := r.doc.Call("createElement", "div")
		el.Get("dataset").Set("groupId", strconv.Itoa(s.GroupID))
		el.Get("dataset").Set("slotIndex", strconv.Itoa(s.Index))
		r.bindSlot(el, s.Slot)
		r.slots[s.Slot] = el
		zone.Call("appendChild", el)
		r.renderSlot(s)
	}
	panel.Call("appendChild", zone)
	return panel
}

func (r *renderer) bindSlot(el js.Value, slot engine.Slot) {
	classes := el.Get("classList")
	r.layout = append(r.layout,
		r.on(el, "dragover", func(ev js.Value) {
			ev.Call("preventDefault")
			classes.Call("add", "drag-over")
		}),
		r.on(el, "dragleave", func(js.Value) { classes.Call("remove", "drag-over") }),
		r.on(el, "drop", func(ev js.Value) {
			ev.Call("preventDefault")
			classes.Call("remove", "drag-over")
			r.h.drop(ev.Get("dataTransfer").Call("getData", "text/plain").String(), slot)
		}),
	)
}

func (r *renderer) renderSlot(s engine.SlotView) {
	el, ok := r.slots[s.Slot]
	if !ok {
		r.logMissing(fmt.Sprintf("slot %s", s.Slot.String()))
		return
	}
	releaseAll(r.slotFuncs[s.Slot])
	delete(r.slotFuncs, s.Slot)

	el.Set("className", slotClass(s))
	el.Set("innerHTML", "")
	if s.Occupant == nil {
		el.Set("textContent", "Drop a sound here")
		return
	}
	from := s.Slot
	node, funcs := r.itemNode(*s.Occupant, &from, !s.Locked)
	r.slotFuncs[s.Slot] = funcs
	el.Call("appendChild", node)
}

func (r *renderer) addPoolItem(it engine.ItemView) {
	node, funcs := r.itemNode(it, nil, true)
	r.poolItems[it.ID] = node
	r.itemFuncs[it.ID] = funcs
	r.pool.Call("appendChild", node)
}

func (r *renderer) removePoolItem(id int) {
	if node, ok := r.poolItems[id]; ok {
		node.Call("remove")
		delete(r.poolItems, id)
	}
	releaseAll(r.itemFuncs[id])
	delete(r.itemFuncs, id)
}

func (r *renderer) replacePoolItem(it engine.ItemView) {
	old, ok := r.poolItems[it.ID]
	if !ok {
		r.logMissing(fmt.Sprintf("pool item %d", it.ID))
		return
	}
	releaseAll(r.itemFuncs[it.ID])
	node, funcs := r.itemNode(it, nil, true)
	old.Call("replaceWith", node)
	r.poolItems[it.ID] = node
	r.itemFuncs[it.ID] = funcs
}

// itemNode builds an audio item with its play button. from is the slot the
// item occupies, or nil for the pool.
func (r *renderer) itemNode(it engine.ItemView, from *engine.Slot, draggable bool) (js.Value, []listener) {
	var funcs []listener

	el := r.doc.Call("createElement", "div")
	el.Set("className", itemClass(it))
	el.Get("dataset").Set("audioId", strconv.Itoa(it.ID))

	btn := r.doc.Call("createElement", "button")
	btn.Set("className", "play-btn")
	btn.Set("type", "button")
	btn.Set("textContent", it.Glyph)
	if it.Missing {
		btn.Set("disabled", true)
	} else {
		id := it.ID
		funcs = append(funcs, r.on(btn, "click", func(ev js.Value) {
			ev.Call("stopPropagation")
			r.h.toggle(id)
		}))
	}
	el.Call("appendChild", btn)

	label := r.doc.Call("createElement", "span")
	label.Set("textContent", it.Label)
	el.Call("appendChild", label)

	el.Set("draggable", draggable)
	if draggable {
		data, err := engine.EncodePayload(payloadFor(it, from))
		if err == nil {
			payload := string(data)
			funcs = append(funcs, r.on(el, "dragstart", func(ev js.Value) {
				dt := ev.Get("dataTransfer")
				dt.Call("setData", "text/plain", payload)
				dt.Set("effectAllowed", "move")
			}))
		}
	}
	return el, funcs
}

func (r *renderer) renderPhase(v engine.View) {
	r.validate.Set("disabled", !v.CanValidate)
	if v.Score != nil {
		r.score.Set("hidden", false)
		r.score.Set("className", scoreClass(*v.Score))
		r.score.Set("textContent", scoreText(*v.Score))
	} else {
		r.score.Set("hidden", true)
	}
	if r.status.Truthy() {
		switch {
		case v.Score != nil:
			r.status.Set("textContent", "")
		case v.Hidden > 0:
			r.status.Set("textContent", fmt.Sprintf("%d more sounds to come", v.Hidden))
		case v.CanValidate:
			r.status.Set("textContent", "Every sound is placed. Validate when ready.")
		default:
			r.status.Set("textContent", "")
		}
	}
}

func (r *renderer) renderVolume(v float64) {
	pct := volumePercent(v)
	if r.volume.Truthy() {
		r.volume.Set("value", strconv.Itoa(pct))
	}
	if r.volumeValue.Truthy() {
		r.volumeValue.Set("textContent", fmt.Sprintf("%d%%", pct))
	}
}

func (r *renderer) logMissing(what string) {
	js.Global().Get("console").Call("error", fmt.Sprintf("listenex: %s: %s", ErrMissingAnchor, what))
}

func (r *renderer) releaseNodes() {
	releaseAll(r.layout)
	r.layout = nil
	for k, ls := range r.slotFuncs {
		releaseAll(ls)
		delete(r.slotFuncs, k)
	}
	for k, ls := range r.itemFuncs {
		releaseAll(ls)
		delete(r.itemFuncs, k)
	}
	clear(r.slots)
	clear(r.poolItems)
}

// close detaches every listener and empties the containers.
func (r *renderer) close() {
	r.releaseNodes()
	r.groups.Set("innerHTML", "")
	r.pool.Set("innerHTML", "")
	releaseAll(r.static)
	r.static = nil
}
