package yarn

import (
	"bufio"
	"fmt"
	"io"
)

// WriteSVG writes the recorded commands of each recorder, in order, as an SVG document of size
// width x height. Each LineStyle opens a new path.
// WriteSVG 将记录的绘制命令输出为 SVG
func WriteSVG(w io.Writer, width, height float64, layers ...*Recorder) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n",
		width, height, width, height)

	for _, layer := range layers {
		if layer == nil {
			continue
		}
		writeLayer(bw, layer.cmds)
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func writeLayer(bw *bufio.Writer, cmds []Command) {
	var (
		open  bool
		style Command
	)
	closePath := func() {
		if open {
			bw.WriteString(`"/>` + "\n")
			open = false
		}
	}
	openPath := func() {
		if open {
			return
		}
		fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-opacity="%g" stroke-width="%g" stroke-linecap="round" d="`,
			style.Color.Hex(), style.Alpha, style.Args[0])
		open = true
	}

	bw.WriteString("<g>\n")
	for _, c := range cmds {
		switch c.Op {
		case OpLineStyle:
			closePath()
			style = c
		case OpMoveTo:
			openPath()
			fmt.Fprintf(bw, "M%.2f %.2f ", c.Args[0], c.Args[1])
		case OpLineTo:
			openPath()
			fmt.Fprintf(bw, "L%.2f %.2f ", c.Args[0], c.Args[1])
		case OpQuadTo:
			openPath()
			fmt.Fprintf(bw, "Q%.2f %.2f %.2f %.2f ", c.Args[0], c.Args[1], c.Args[2], c.Args[3])
		case OpRect:
			openPath()
			x, y, rw, rh := c.Args[0], c.Args[1], c.Args[2], c.Args[3]
			fmt.Fprintf(bw, "M%.2f %.2f h%.2f v%.2f h%.2f Z ", x, y, rw, rh, -rw)
		}
	}
	closePath()
	bw.WriteString("</g>\n")
}
