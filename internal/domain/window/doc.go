/*
Package window implements the desktop window registry.

A Manager holds the open windows of one desktop together with a stacking
counter. Every operation that brings a window to the front takes the next
value of that counter, so z-indexes are unique and strictly ordered by
recency of focus. Operations on unknown ids are no-ops that report false;
a closed id is never handed out again.

Opening an app that already has a visible window focuses it; opening an app
whose only window is minimized restores that window. Otherwise a new window
is created at the next cascade slot.

	wm := window.NewManager(window.DefaultLayout())
	cancel := wm.Subscribe(func(ev window.Event) { redraw(ev) })
	defer cancel()

	w := wm.Open(window.Descriptor{AppID: "subjects", Title: "Base de Personas"})
	wm.Maximize(w.ID)
*/
package window
