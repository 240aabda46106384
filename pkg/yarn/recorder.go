package yarn

import (
	"fmt"
	"strings"
)

// Op draw command opcode
type Op uint8

const (
	OpLineStyle Op = iota + 1
	OpMoveTo
	OpLineTo
	OpQuadTo
	OpRect
)

func (o Op) String() string {
	switch o {
	case OpLineStyle:
		return "style"
	case OpMoveTo:
		return "M"
	case OpLineTo:
		return "L"
	case OpQuadTo:
		return "Q"
	case OpRect:
		return "R"
	}
	return "?"
}

// Command one recorded draw call
type Command struct {
	Op    Op
	Args  [4]float64
	Color Color
	Alpha float64
}

func (c Command) String() string {
	switch c.Op {
	case OpLineStyle:
		return fmt.Sprintf("style %g %s %g", c.Args[0], c.Color.Hex(), c.Alpha)
	case OpMoveTo, OpLineTo:
		return fmt.Sprintf("%s %g %g", c.Op, c.Args[0], c.Args[1])
	default:
		return fmt.Sprintf("%s %g %g %g %g", c.Op, c.Args[0], c.Args[1], c.Args[2], c.Args[3])
	}
}

// Recorder is a Graphics that keeps every call in order.
// Recorder 记录所有绘制调用的 Graphics 实现
type Recorder struct {
	cmds []Command
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) LineStyle(width float64, color Color, alpha float64) {
	r.cmds = append(r.cmds, Command{Op: OpLineStyle, Args: [4]float64{width}, Color: color, Alpha: alpha})
}

func (r *Recorder) MoveTo(x, y float64) {
	r.cmds = append(r.cmds, Command{Op: OpMoveTo, Args: [4]float64{x, y}})
}

func (r *Recorder) LineTo(x, y float64) {
	r.cmds = append(r.cmds, Command{Op: OpLineTo, Args: [4]float64{x, y}})
}

func (r *Recorder) QuadraticCurveTo(cx, cy, x, y float64) {
	r.cmds = append(r.cmds, Command{Op: OpQuadTo, Args: [4]float64{cx, cy, x, y}})
}

func (r *Recorder) DrawRect(x, y, w, h float64) {
	r.cmds = append(r.cmds, Command{Op: OpRect, Args: [4]float64{x, y, w, h}})
}

// Clear drops every recorded command.
func (r *Recorder) Clear() {
	r.cmds = r.cmds[:0]
}

// Commands returns a copy of the recorded commands
func (r *Recorder) Commands() []Command {
	out := make([]Command, len(r.cmds))
	copy(out, r.cmds)
	return out
}

// Len number of recorded commands
func (r *Recorder) Len() int { return len(r.cmds) }

// Empty reports whether nothing has been drawn since the last Clear.
func (r *Recorder) Empty() bool { return len(r.cmds) == 0 }

// String renders the command list one per line, handy for diffing.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, c := range r.cmds {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}
