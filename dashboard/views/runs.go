package views

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

type RunListProps struct {
	Runs          []*collector.Event
	SelectedID    *string
	TruncateAfter uint64
}

func RunList(props RunListProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<ul id="run-list" class="divide-y divide-neutral-200 rounded-md border border-neutral-200 bg-white">`)
		if len(props.Runs) == 0 {
			h.raw(`<li id="run-list-empty" class="p-4 text-sm text-neutral-500">No runs yet.</li>`)
		}
		for _, evt := range props.Runs {
			selected := props.SelectedID != nil && *props.SelectedID == evt.ID.String()
			h.component(RunListItem(evt, selected))
		}
		h.raw(`</ul>`)
		if props.TruncateAfter > 0 && uint64(len(props.Runs)) >= props.TruncateAfter {
			h.rawf(`<p class="mt-2 text-xs text-neutral-500">Showing the latest %d runs.</p>`, props.TruncateAfter)
		}
		return h.err
	})
}

// RunListItem renders one run. Events not holding a run result render nothing.
func RunListItem(evt *collector.Event, selected bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		result, ok := evt.Data.(*runner.Result)
		if !ok {
			return nil
		}
		h := newHTMLWriter(ctx, w)
		class := "block px-4 py-3 hover:bg-neutral-100"
		if selected {
			class += " bg-neutral-100"
		}
		h.rawf(`<li id="run-%s"><a class="%s" href="%s">`, esc(evt.ID.String()), class, esc(link(ctx, "/?id=%s", evt.ID)))
		h.raw(`<div class="flex items-center justify-between gap-2">`)
		h.raw(`<span class="font-mono text-sm font-semibold">`)
		h.text(result.Scenario)
		h.raw(`</span>`)
		h.component(statusBadge(result.Status))
		h.raw(`</div><div class="mt-1 text-xs text-neutral-500">`)
		h.text(formatDuration(result.Duration()) + " · " + formatDurationSince(result.Start))
		if result.Driver != "" {
			h.text(" · " + result.Driver)
		}
		h.raw(`</div></a></li>`)
		return h.err
	})
}

func statusBadge(status runner.Status) templ.Component {
	variant := BadgeVariantSecondary
	switch status {
	case runner.StatusPassed:
		variant = BadgeVariantSuccess
	case runner.StatusWarned:
		variant = BadgeVariantWarning
	case runner.StatusFailed:
		variant = BadgeVariantError
	}
	return Badge(BadgeProps{Variant: variant}, string(status))
}

// RunDetail renders the steps, console and logs of a run.
func RunDetail(evt *collector.Event) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		result, ok := evt.Data.(*runner.Result)
		if !ok {
			_, err := io.WriteString(w, `<p>Not a run.</p>`)
			return err
		}

		h := newHTMLWriter(ctx, w)
		h.raw(`<article class="rounded-md border border-neutral-200 bg-white p-4">`)
		h.raw(`<div class="flex items-center gap-3"><h2 class="font-mono text-xl font-bold">`)
		h.text(result.Scenario)
		h.raw(`</h2>`)
		h.component(statusBadge(result.Status))
		h.raw(`</div><p class="mt-1 text-sm text-neutral-600">`)
		h.text(result.Description)
		h.raw(`</p><dl class="mt-3 grid grid-cols-2 gap-1 text-xs font-mono">`)
		for _, row := range [][2]string{
			{"Target", result.Target},
			{"Source", result.Source},
			{"Driver", result.Driver},
			{"Started", result.Start.Format("2006-01-02 15:04:05")},
			{"Duration", formatDuration(result.Duration())},
			{"Run", result.ID.String()},
		} {
			if row[1] == "" {
				continue
			}
			h.rawf(`<dt class="text-neutral-500">%s</dt><dd>%s</dd>`, esc(row[0]), esc(row[1]))
		}
		h.raw(`</dl>`)

		if result.Err != nil {
			h.raw(`<pre class="mt-3 whitespace-pre-wrap rounded bg-red-50 p-2 text-sm text-red-700">`)
			h.text(result.Err.Error())
			h.raw(`</pre>`)
		}

		h.raw(`<ol class="mt-4 space-y-3">`)
		for _, step := range result.Steps {
			h.component(stepDetail(result, step))
		}
		h.raw(`</ol>`)

		if entries := collector.ChildrenOf[collector.ConsoleEntry](evt); len(entries) > 0 {
			h.raw(`<h3 class="mt-6 font-semibold">Console</h3><ul class="mt-2 font-mono text-xs">`)
			for _, entry := range entries {
				class := "text-neutral-700"
				if entry.IsError() {
					class = "text-red-600"
				}
				h.rawf(`<li class="%s">[%s] `, class, esc(entry.Type))
				h.text(entry.Text)
				h.raw(`</li>`)
			}
			h.raw(`</ul>`)
		}

		if records := collector.ChildrenOf[slog.Record](evt); len(records) > 0 {
			h.raw(`<h3 class="mt-6 font-semibold">Log</h3><ul class="mt-2 font-mono text-xs">`)
			for _, record := range records {
				h.rawf(`<li><span class="text-neutral-500">%s</span> %s `, record.Time.Format("15:04:05.000"), esc(record.Level.String()))
				h.text(record.Message)
				for attr := range iterSlogAttrs(record) {
					h.raw(` <span class="text-neutral-500">`)
					h.text(attr.Key + "=" + attr.Value.String())
					h.raw(`</span>`)
				}
				h.raw(`</li>`)
			}
			h.raw(`</ul>`)
		}

		if requests := collector.ChildrenOf[collector.HTTPRequest](evt); len(requests) > 0 {
			h.raw(`<h3 class="mt-6 font-semibold">Target checks</h3><ul class="mt-2 font-mono text-xs">`)
			for _, req := range requests {
				h.raw(`<li>`)
				h.text(req.Method + " " + req.URL + " → ")
				if req.Error != nil {
					h.text(req.Error.Error())
				} else {
					h.text(strconv.Itoa(req.StatusCode))
				}
				h.text(" (" + formatDuration(req.Duration()) + ")")
				h.raw(`</li>`)
			}
			h.raw(`</ul>`)
		}

		h.raw(`</article>`)
		return h.err
	})
}

func stepDetail(result *runner.Result, step runner.StepResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.rawf(`<li class="rounded border border-neutral-200 p-3" id="step-%d">`, step.Index)
		h.raw(`<div class="flex items-center justify-between gap-2"><span class="font-mono text-sm">`)
		h.text(strconv.Itoa(step.Index) + ". " + step.Step.Label())
		h.raw(`</span><span class="flex items-center gap-2 text-xs text-neutral-500">`)
		if step.Status != runner.StatusSkipped {
			h.text(formatDuration(step.Duration))
		}
		h.component(statusBadge(step.Status))
		h.raw(`</span></div>`)

		switch step.Step.Action {
		case scenario.ActionEvaluate, scenario.ActionAssert:
			h.raw(`<div class="mt-2 text-xs">`)
			h.component(highlightContent(strings.TrimSpace(step.Step.Script), "javascript"))
			h.raw(`</div>`)
		case scenario.ActionHook:
			if len(step.Step.Args) > 0 {
				h.raw(`<div class="mt-2 text-xs">`)
				h.component(highlightContent(formatArgs(step.Step.Args), "yaml"))
				h.raw(`</div>`)
			}
		}

		if len(step.Output) > 0 {
			h.raw(`<pre class="mt-2 whitespace-pre-wrap rounded bg-neutral-100 p-2 text-xs">`)
			h.text(strings.Join(step.Output, "\n"))
			h.raw(`</pre>`)
		}
		if step.Err != nil {
			h.raw(`<pre class="mt-2 whitespace-pre-wrap rounded bg-red-50 p-2 text-xs text-red-700">`)
			h.text(step.Err.Error())
			h.raw(`</pre>`)
		}
		if step.Artifact != "" {
			src := link(ctx, "/artifact/%s/%d", result.ID, step.Index)
			h.rawf(`<a href="%[1]s" target="_blank"><img class="mt-2 max-h-64 rounded border" src="%[1]s" alt="%[2]s"></a>`, esc(src), esc(step.Artifact))
		}
		h.raw(`</li>`)
		return h.err
	})
}

func formatArgs(args []any) string {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString("- ")
		sb.WriteString(strconv.Quote(fmt.Sprint(arg)))
		sb.WriteString("\n")
	}
	return sb.String()
}
