package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/industrial-sec/uaenum/internal/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format selects the renderer for enumeration results.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", errors.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Foreground colors.
const (
	Black uint8 = iota + 30
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
)

// Colorize colorizes a string by a given color.
func Colorize(s string, c uint8) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", c, s)
}

// Printer renders enumeration results to a writer.
type Printer struct {
	w      io.Writer
	colors bool
}

func NewPrinter(w io.Writer, colors bool) *Printer {
	return &Printer{w: w, colors: colors}
}

// Render writes the node trees in the requested format.
func (p *Printer) Render(format Format, nodes []*model.Node) error {
	switch format {
	case FormatJSON:
		return p.renderJSON(nodes)
	case FormatYAML:
		return p.renderYAML(nodes)
	default:
		for _, n := range nodes {
			p.renderText(n, 0)
		}
		return nil
	}
}

// ServerInfo writes the server self-description in the requested format.
func (p *Printer) ServerInfo(format Format, info *model.ServerInfo) error {
	switch format {
	case FormatJSON:
		return p.encodeJSON(info)
	case FormatYAML:
		return p.encodeYAML(info)
	}
	fmt.Fprintf(p.w, "Server: %s | Manufacturer: %s | Version: %s | State: %s\n",
		info.ProductName, info.ManufacturerName, info.SoftwareVersion, info.State)
	for i, ns := range info.Namespaces {
		fmt.Fprintf(p.w, "  ns=%d: %s\n", i, ns)
	}
	return nil
}

func (p *Printer) renderText(n *model.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	name := n.BrowseName
	if p.colors {
		name = Colorize(name, classColor(n.Class))
	}
	if n.Class == "Variable" {
		fmt.Fprintf(p.w, "%s- %s (%s) | NodeId: %s | DataType: %s | Access: %s\n",
			indent, name, n.Class, n.NodeID, n.DataType, n.Access)
		if n.ValueError != "" {
			fmt.Fprintf(p.w, "%s  Could not read value: %s\n", indent, n.ValueError)
		} else {
			fmt.Fprintf(p.w, "%s  Value: %v\n", indent, n.Value)
		}
	} else {
		fmt.Fprintf(p.w, "%s- %s (%s) | NodeId: %s\n", indent, name, n.Class, n.NodeID)
	}
	for _, c := range n.Children {
		p.renderText(c, depth+1)
	}
}

func (p *Printer) renderJSON(nodes []*model.Node) error {
	if len(nodes) == 1 {
		return p.encodeJSON(nodes[0])
	}
	return p.encodeJSON(nodes)
}

func (p *Printer) renderYAML(nodes []*model.Node) error {
	if len(nodes) == 1 {
		return p.encodeYAML(nodes[0])
	}
	return p.encodeYAML(nodes)
}

func (p *Printer) encodeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}

func (p *Printer) encodeYAML(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode yaml")
	}
	return enc.Close()
}

func classColor(class string) uint8 {
	switch class {
	case "Variable":
		return Green
	case "Method":
		return Magenta
	case "Object":
		return Cyan
	default:
		return White
	}
}
