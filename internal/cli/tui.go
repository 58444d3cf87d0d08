package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mhersch/flowlevel/pkg/pipeline"
	"github.com/mhersch/flowlevel/pkg/report"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// newTUICmd creates the tui command: an interactive browser over the
// legalized schedule. Levels are listed deepest first, matching the
// source-to-sink flow of the rendered diagrams.
func newTUICmd() *cobra.Command {
	opts := legalizeOpts{insertCopy: true, minGran: pipeline.DefaultMinGran}

	cmd := &cobra.Command{
		Use:   "tui <manifest.toml>",
		Short: "Browse pipeline levels interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyLegalizeConfig(cmd, &opts)
			return runTUI(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.insertCopy, "insert-copy", opts.insertCopy, "insert copy buffers instead of merging levels")
	cmd.Flags().IntVar(&opts.minGran, "min-gran", opts.minGran, "minimum merge granularity (with --insert-copy=false)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the report cache")

	return cmd
}

// runTUI legalizes the manifest and hands the report to the level browser.
func runTUI(ctx context.Context, path string, opts *legalizeOpts) error {
	runner, err := newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	result, err := runner.Execute(ctx, opts.pipelineOptions(path))
	if err != nil {
		return err
	}

	model := newLevelBrowser(result.Report)
	_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
	return err
}

// =============================================================================
// LevelBrowser - Interactive schedule navigation
// =============================================================================

// levelGroup collects the nodes assigned to one pipeline level.
type levelGroup struct {
	Level int64
	Nodes []report.NodeReport
}

// LevelBrowser is the bubbletea model for browsing a legalization report.
// The left column lists levels (deepest first); the detail pane shows the
// members of the selected level.
type LevelBrowser struct {
	Report    *report.Report
	RegionIdx int
	Cursor    int
	Height    int
	Offset    int
	levels    []levelGroup
}

// newLevelBrowser creates a browser positioned on the first region.
func newLevelBrowser(rep *report.Report) *LevelBrowser {
	b := &LevelBrowser{Report: rep, Height: 15}
	b.rebuildLevels()
	return b
}

// rebuildLevels regroups the current region's nodes by level, deepest first.
func (b *LevelBrowser) rebuildLevels() {
	b.levels = b.levels[:0]
	b.Cursor = 0
	b.Offset = 0
	if len(b.Report.Regions) == 0 {
		return
	}
	region := b.Report.Regions[b.RegionIdx]
	for level := region.Stats.Levels; level >= 1; level-- {
		group := levelGroup{Level: level}
		for _, n := range region.Nodes {
			if n.Level == level {
				group.Nodes = append(group.Nodes, n)
			}
		}
		if len(group.Nodes) > 0 {
			b.levels = append(b.levels, group)
		}
	}
}

func (b *LevelBrowser) Init() tea.Cmd {
	return nil
}

func (b *LevelBrowser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "up", "k":
			if b.Cursor > 0 {
				b.Cursor--
				if b.Cursor < b.Offset {
					b.Offset = b.Cursor
				}
			}
		case "down", "j":
			if b.Cursor < len(b.levels)-1 {
				b.Cursor++
				if b.Cursor >= b.Offset+b.Height {
					b.Offset = b.Cursor - b.Height + 1
				}
			}
		case "left", "h":
			if b.RegionIdx > 0 {
				b.RegionIdx--
				b.rebuildLevels()
			}
		case "right", "l", "tab":
			if b.RegionIdx < len(b.Report.Regions)-1 {
				b.RegionIdx++
				b.rebuildLevels()
			}
		}
	case tea.WindowSizeMsg:
		b.Height = msg.Height - 10
		if b.Height < 5 {
			b.Height = 5
		}
	}
	return b, nil
}

func (b *LevelBrowser) View() string {
	var sb strings.Builder

	if len(b.Report.Regions) == 0 {
		return StyleWarning.Render("Report contains no regions") + "\n"
	}
	region := b.Report.Regions[b.RegionIdx]

	sb.WriteString(StyleTitle.Render(fmt.Sprintf("%s / %s", b.Report.Program, region.Name)))
	sb.WriteString("\n")
	sb.WriteString(listDimStyle.Render("↑/↓ level  ←/→ region  q quit"))
	sb.WriteString("\n\n")

	end := b.Offset + b.Height
	if end > len(b.levels) {
		end = len(b.levels)
	}

	rows := [][]string{}
	for i := b.Offset; i < end; i++ {
		g := b.levels[i]
		cursor := "  "
		if i == b.Cursor {
			cursor = "▸ "
		}
		synth := 0
		for _, n := range g.Nodes {
			if n.Synthesized {
				synth++
			}
		}
		synthStr := "—"
		if synth > 0 {
			synthStr = fmt.Sprintf("%d", synth)
		}
		rows = append(rows, []string{
			cursor,
			fmt.Sprintf("%d", g.Level),
			fmt.Sprintf("%d", len(g.Nodes)),
			synthStr,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Level", "Nodes", "Copies").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if b.Offset+row == b.Cursor {
				return listSelectedStyle
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")

	if b.Cursor < len(b.levels) {
		sb.WriteString(b.viewMembers(b.levels[b.Cursor]))
	}

	sb.WriteString(listDimStyle.Render(fmt.Sprintf("  [region %d/%d]", b.RegionIdx+1, len(b.Report.Regions))))
	return sb.String()
}

// viewMembers renders the detail pane for one level.
func (b *LevelBrowser) viewMembers(g levelGroup) string {
	var sb strings.Builder
	sb.WriteString(StyleDim.Render(fmt.Sprintf("  level %d members:", g.Level)))
	sb.WriteString("\n")
	for _, n := range g.Nodes {
		name := n.Name
		if n.Synthesized {
			name = StyleWarning.Render(name + " (copy)")
		} else {
			name = StyleValue.Render(name)
		}
		detail := n.Kind
		if len(n.Loads) > 0 {
			detail += "  reads " + strings.Join(n.Loads, ", ")
		}
		if len(n.Stores) > 0 {
			detail += "  writes " + strings.Join(n.Stores, ", ")
		}
		sb.WriteString(fmt.Sprintf("    %s  %s\n", name, listDimStyle.Render(detail)))
	}
	sb.WriteString("\n")
	return sb.String()
}
