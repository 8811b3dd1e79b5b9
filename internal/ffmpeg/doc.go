// Package ffmpeg locates the ffmpeg binary, negotiates a screen capture
// input format with it and builds the capture command line.
//
// The usual flow is
//
//	n := ffmpeg.NewNegotiator(ffmpeg.NegotiatorOptions{
//		Resolver: ffmpeg.NewResolver(cfg, logger),
//		Prober:   ffmpeg.NewProber(logger),
//	})
//	enc, err := n.Negotiate(ctx)
//	args := ffmpeg.DefaultParams().Args(enc.Capability)
//
// Resolution failures match ErrResolution and probe failures match
// ErrCapabilityNotFound, so callers can tell them apart with errors.Is.
package ffmpeg
