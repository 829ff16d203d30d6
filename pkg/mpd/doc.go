// Package mpd provides a client for the Music Player Daemon line protocol.
//
// The package is split into a low-level Codec that frames requests and
// responses over any byte stream, and a Client that layers a connection
// state machine, authentication, capability probing, and idle-mode change
// notifications on top of it. It is designed to be used as a standalone
// SDK.
//
// Example usage:
//
//	import "github.com/cadenza-player/cadenza/pkg/mpd"
//
//	client := mpd.NewClient(mpd.Config{
//	    Network: "tcp",
//	    Address: "localhost:6600",
//	})
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	status, err := client.Status(ctx)
package mpd
