package engine

import (
	"fmt"

	"StegLab/pkg/carrier"
	"StegLab/pkg/carriers/audio"
	"StegLab/pkg/carriers/fs"
	"StegLab/pkg/carriers/image"
	"StegLab/pkg/carriers/network"
	"StegLab/pkg/carriers/text"
	"StegLab/pkg/carriers/video"
	"StegLab/pkg/carriers/watermark"
)

// builtins lists the carrier constructors in registration order
var builtins = []func() (*carrier.Carrier, error){
	image.New,
	audio.New,
	video.New,
	text.New,
	network.New,
	fs.New,
	watermark.New,
}

// Builtin returns a registry with every bundled carrier
func Builtin() (*carrier.Registry, error) {
	entries := make([]*carrier.Carrier, 0, len(builtins))
	for _, build := range builtins {
		c, err := build()
		if err != nil {
			return nil, fmt.Errorf("build carrier: %w", err)
		}
		entries = append(entries, c)
	}
	return carrier.NewRegistry(entries...)
}
