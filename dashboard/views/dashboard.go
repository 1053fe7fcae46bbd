package views

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/networkteam/pageprobe/collector"
)

type DashboardProps struct {
	Runs          []*collector.Event
	Selected      *collector.Event
	TruncateAfter uint64
	// Scenarios can be triggered from the dashboard. Empty hides the trigger panel.
	Scenarios   []string
	CaptureMode collector.CaptureMode
}

func Dashboard(props DashboardProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>pageprobe</title>`)
		h.raw(`<script src="https://cdn.tailwindcss.com"></script>`)
		h.component(chromaStyles())
		h.raw(`</head><body class="bg-neutral-50 text-neutral-900 font-sans">`)

		h.raw(`<header class="flex items-center justify-between border-b border-neutral-200 bg-white px-6 py-3">`)
		h.rawf(`<a href="%s" class="font-mono text-lg font-bold">pageprobe</a>`, esc(link(ctx, "/")))
		h.component(captureModeToggle(props.CaptureMode))
		h.raw(`</header>`)

		if len(props.Scenarios) > 0 {
			h.raw(`<section class="flex flex-wrap gap-2 border-b border-neutral-200 bg-white px-6 py-3">`)
			for _, name := range props.Scenarios {
				h.component(PostButton(ButtonProps{Variant: ButtonVariantOutline, Size: ButtonSizeSm}, link(ctx, "/trigger/%s", url.PathEscape(name)), "▶ "+name, nil))
			}
			h.raw(`</section>`)
		}

		h.raw(`<main class="grid grid-cols-3 gap-4 p-6">`)
		h.raw(`<aside class="col-span-1">`)
		var selectedID *string
		if props.Selected != nil {
			id := props.Selected.ID.String()
			selectedID = &id
		}
		h.component(RunList(RunListProps{Runs: props.Runs, SelectedID: selectedID, TruncateAfter: props.TruncateAfter}))
		h.raw(`</aside><section class="col-span-2" id="run-detail">`)
		if props.Selected != nil {
			h.component(RunDetail(props.Selected))
		} else {
			h.raw(`<p class="text-neutral-500">Select a run to see its steps.</p>`)
		}
		h.raw(`</section></main>`)

		h.rawf(`<script>
const source = new EventSource(%q);
source.addEventListener("new-run", (e) => {
  document.getElementById("run-list").insertAdjacentHTML("afterbegin", e.data);
  document.getElementById("run-list-empty")?.remove();
});
</script>`, link(ctx, "/events-sse"))
		h.raw(`</body></html>`)
		return h.err
	})
}

func captureModeToggle(mode collector.CaptureMode) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<div class="flex items-center gap-2">`)
		h.component(Badge(BadgeProps{Variant: BadgeVariantOutline}, mode.String()))
		next := collector.CaptureModeGlobal
		label := "Show all runs"
		if mode == collector.CaptureModeGlobal {
			next = collector.CaptureModeSuite
			label = "Show my runs only"
		}
		h.component(PostButton(ButtonProps{Variant: ButtonVariantSecondary, Size: ButtonSizeSm}, link(ctx, "/capture-mode"), label, map[string]string{"mode": next.String()}))
		h.raw(`</div>`)
		return h.err
	})
}
