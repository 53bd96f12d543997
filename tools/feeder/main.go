package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/razzie/gifenc/pkg/connector"
)

const (
	width   = 160
	height  = 120
	fps     = 20
	quality = 80
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Printf("Usage: %s [server URL] [seconds]\n", os.Args[0])
		os.Exit(1)
	}
	server := os.Args[1]
	seconds := 3
	if len(os.Args) == 3 {
		var err error
		if seconds, err = strconv.Atoi(os.Args[2]); err != nil || seconds < 1 {
			fmt.Println("invalid duration:", os.Args[2])
			os.Exit(1)
		}
	}

	id, err := connector.CreateSession(server, width, height, quality)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("session:", id)

	conn, err := connector.NewConnection(server, id)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer conn.Close()

	frames := seconds * fps
	pix := make([]byte, width*height*4)
	for i := 0; i < frames; i++ {
		renderGradient(pix, i)
		if err := conn.PushRGBA(pix, float64(i)/fps); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}
	fmt.Printf("pushed %d frames; download at %s/gif/%s\n", frames, server, id)
}

// renderGradient draws a gradient that drifts with t so consecutive
// frames differ only in part of the image.
func renderGradient(pix []byte, t int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			pix[i] = uint8(x*255/width + t*8)
			pix[i+1] = uint8(y * 255 / height)
			pix[i+2] = uint8((x+y)*255/(width+height) - t*4)
			pix[i+3] = 0xff
		}
	}
}
