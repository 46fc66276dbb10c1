package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	servercommon "github.com/hylla/cardflow/internal/adapters/server/common"
)

// activityWrapWidth bounds rendered activity feeds.
const activityWrapWidth = 100

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

// emit prints v as JSON when requested, otherwise runs the text printer.
func emit(w io.Writer, opts *cliOptions, v any, text func(io.Writer)) error {
	if opts.jsonOut {
		return printJSON(w, v)
	}
	text(w)
	return nil
}

func cardLine(c servercommon.CardView) string {
	marker := " "
	if c.IsCompleted {
		marker = "x"
	}
	line := fmt.Sprintf("[%s] #%d %s (category %d, %d%%, %s", marker, c.ID, c.Name, c.CategoryID, c.Progress, c.Priority)
	if c.Status != "active" {
		line += ", " + c.Status
	}
	if c.DueAt != nil {
		line += ", due " + c.DueAt.Format("2006-01-02")
	}
	return line + ")"
}

func printCards(w io.Writer, cards []servercommon.CardView) {
	if len(cards) == 0 {
		_, _ = fmt.Fprintln(w, "no cards")
		return
	}
	for _, c := range cards {
		_, _ = fmt.Fprintln(w, cardLine(c))
	}
}

func checklistLine(item servercommon.ChecklistItemView) string {
	marker := " "
	if item.IsComplete {
		marker = "x"
	}
	line := fmt.Sprintf("[%s] %d. %s (item %d)", marker, item.Position+1, item.Title, item.ID)
	if item.ConvertedCardID != nil {
		line += fmt.Sprintf(" -> card #%d", *item.ConvertedCardID)
	}
	return line
}

// activityMarkdown renders a card's feed as a markdown list, newest first.
func activityMarkdown(cardID int64, activities []servercommon.ActivityView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Card #%d activity\n\n", cardID)
	if len(activities) == 0 {
		b.WriteString("_No activity yet._\n")
		return b.String()
	}
	for _, a := range activities {
		message := a.Message
		if message == "" {
			message = a.Details
		}
		fmt.Fprintf(&b, "- `%s` %s  \n  _%s_\n", a.CreatedAt.Format("2006-01-02 15:04"), message, a.Type)
	}
	return b.String()
}

// renderMarkdown renders markdown for the terminal with the given glamour style.
func renderMarkdown(markdown, style string) (string, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(activityWrapWidth),
	)
	if err != nil {
		return "", fmt.Errorf("configure markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// boardTable lays a board's cards out one row per card, grouped by category position.
func boardTable(categories []servercommon.CategoryView, cards []servercommon.CardFlagsView) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	colorOf := map[int]string{}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("Category", "Card", "Priority", "Progress", "Flags").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 0 {
				if c := colorOf[row]; c != "" {
					style = style.Foreground(lipgloss.Color(c))
				}
			}
			return style
		})

	row := 0
	for _, category := range categories {
		for _, card := range cards {
			if card.CategoryID != category.ID {
				continue
			}
			colorOf[row] = category.Color
			t.Row(
				category.Name,
				fmt.Sprintf("#%d %s", card.ID, card.Name),
				card.Priority,
				fmt.Sprintf("%d%%", card.Progress),
				cardFlags(card),
			)
			row++
		}
	}
	return t.Render()
}

func cardFlags(card servercommon.CardFlagsView) string {
	var flags []string
	if card.IsCompleted {
		flags = append(flags, "done")
	}
	if card.IsBlocker {
		flags = append(flags, "blocker")
	}
	if card.IsBlockedBy {
		flags = append(flags, "blocked")
	}
	if card.Status != "active" {
		flags = append(flags, card.Status)
	}
	return strings.Join(flags, ", ")
}
