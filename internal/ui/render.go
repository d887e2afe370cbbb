package ui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"github.com/driftwatch-project/driftwatch/internal/store"
	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

func (r *Root) renderLeft() {
	rows := r.rows()
	var bob strings.Builder

	for i, rw := range rows {
		if i == r.cursor && !r.focusRight {
			bob.WriteString(r.theme.ListCurrentArrowTextStyle.Render("> "))
		} else {
			bob.WriteString("  ")
		}

		if rw.rev == nil {
			entry := r.targets[rw.target]
			arrow := arrowRight
			if entry.open {
				arrow = arrowDown
			}
			bob.WriteString(arrow)
			bob.WriteString(" ")
			bob.WriteString(r.theme.ListTargetTextStyle.Render(entry.name))
			bob.WriteString(" ")
			bob.WriteString(r.theme.ListActivityTextStyle.Render(
				fmt.Sprintf("(%d)", len(entry.revs))))
			if !entry.lastSeen.IsZero() {
				bob.WriteString(" ")
				bob.WriteString(r.theme.MutedTextStyle.Render(
					"seen " + humanize.Time(entry.lastSeen)))
			}
		} else {
			bob.WriteString("  ")
			bob.WriteString(r.theme.ListRevisionTextStyle.Render("r" + rw.rev.id.String()))
			bob.WriteString(" ")
			bob.WriteString(r.theme.MutedTextStyle.Render(humanize.Time(rw.rev.taken)))
			if rw.rev.first {
				bob.WriteString(" ")
				bob.WriteString(r.theme.MutedTextStyle.Render("baseline"))
			} else {
				bob.WriteString(" ")
				bob.WriteString(r.renderStatsInline(rw.rev.stats))
			}
		}
		bob.WriteString("\n")
	}

	r.left.SetContent(bob.String())

	// keep the cursor visible
	if r.cursor < r.left.YOffset {
		r.left.SetYOffset(r.cursor)
	} else if r.cursor >= r.left.YOffset+r.left.Height {
		r.left.SetYOffset(r.cursor - r.left.Height + 1)
	}
}

func (r *Root) renderStatsInline(st structdiff.Stats) string {
	return strings.Join([]string{
		r.theme.AddedTextStyle.Render(fmt.Sprintf("+%d", st.Added)),
		r.theme.RemovedTextStyle.Render(fmt.Sprintf("-%d", st.Removed)),
		r.theme.ChangedTextStyle.Render(fmt.Sprintf("~%d", st.Changed)),
	}, " ")
}

func (r *Root) renderRight(ctx context.Context) {
	sel := r.selected()
	if sel == nil {
		r.right.SetContent(r.theme.MutedTextStyle.Render("waiting for the first poll..."))
		return
	}
	if sel.rev == nil {
		entry := r.targets[sel.target]
		r.right.SetContent(fmt.Sprintf("%s\n%s",
			r.theme.ListTargetTextStyle.Render(entry.name),
			r.theme.MutedTextStyle.Render(
				fmt.Sprintf("%d revisions, press enter to expand", len(entry.revs)))))
		return
	}

	if sel.rev.first {
		r.right.SetContent(r.renderSnapshot(ctx, sel.target, sel.rev.id))
		return
	}

	cs, err := r.store.GetChangeSet(ctx, sel.target, sel.rev.id)
	if err != nil {
		r.right.SetContent(r.theme.ErrorTextStyle.Render(
			fmt.Sprintf("cannot load change set: %v", err)))
		return
	}
	r.right.SetContent(r.renderRecords(cs.Records))
}

func (r *Root) renderSnapshot(ctx context.Context, target string, rev store.RevisionID) string {
	snap, err := r.store.GetSnapshot(ctx, target, rev)
	if err != nil {
		return r.theme.ErrorTextStyle.Render(fmt.Sprintf("cannot load snapshot: %v", err))
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, snap.Data, "", "  "); err != nil {
		return string(snap.Data)
	}
	return r.theme.MutedTextStyle.Render("baseline state\n\n") + pretty.String()
}

func (r *Root) renderRecords(records []store.Record) string {
	if len(records) == 0 {
		return r.theme.MutedTextStyle.Render("all records filtered out")
	}
	var bob strings.Builder
	for i, rec := range records {
		if i != 0 {
			bob.WriteString("\n")
		}
		bob.WriteString(r.kindStyle(structdiff.ChangeKind(rec.Kind)).Render(rec.Kind))
		bob.WriteString(" ")
		bob.WriteString(r.theme.PrimaryTextStyle.Render(rec.Path))
		bob.WriteString("\n  ")
		bob.WriteString(rec.Summary)
		bob.WriteString("\n  ")
		bob.WriteString(r.theme.MutedTextStyle.Render(rec.Description))
		bob.WriteString("\n")
	}
	return bob.String()
}

func (r *Root) kindStyle(kind structdiff.ChangeKind) lipgloss.Style {
	switch kind {
	case structdiff.Added:
		return r.theme.AddedTextStyle
	case structdiff.Removed:
		return r.theme.RemovedTextStyle
	case structdiff.Changed:
		return r.theme.ChangedTextStyle
	default:
		return r.theme.MutedTextStyle
	}
}

func (r *Root) shortcuts() *Shortcuts {
	s := NewShortcuts(
		"↑/↓", "move",
		"enter", "expand",
		"tab", "focus",
		"f", "fullscreen",
		"q", "quit",
	)
	return s
}

func (r *Root) View() string {
	if r.width == 0 && r.height == 0 {
		return "" // no size yet
	}
	if r.shuttingDown {
		// this makes sure the whole screen won't stick around after quitting
		return r.theme.MutedTextStyle.Render("Bye!")
	}

	leftBorder := r.theme.BorderActiveContainerStyle
	rightBorder := r.theme.BorderIdleContainerStyle
	if r.focusRight {
		leftBorder, rightBorder = rightBorder, leftBorder
	}

	var panes string
	if r.fullscreen {
		panes = rightBorder.Render(r.right.View())
	} else {
		panes = lipgloss.JoinHorizontal(lipgloss.Top,
			leftBorder.Render(r.left.View()),
			rightBorder.Render(r.right.View()),
		)
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Top,
		r.theme.StatusBarStyle.Render("driftwatch"),
		" ",
		r.shortcuts().Render(r.theme),
	)

	return panes + "\n" + bar
}
