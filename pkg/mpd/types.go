package mpd

import (
	"strconv"
	"strings"
	"time"
)

// PlayState represents the daemon's playback state.
type PlayState int

const (
	StateStopped PlayState = iota // No track playing
	StatePlaying                  // Track is currently playing
	StatePaused                   // Track is paused
)

// String returns a human-readable representation of the PlayState.
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

func parsePlayState(v string) (PlayState, bool) {
	switch v {
	case "stop":
		return StateStopped, true
	case "play":
		return StatePlaying, true
	case "pause":
		return StatePaused, true
	}
	return StateStopped, false
}

// Song is one entry of the music database or the queue. File is the only
// mandatory field; everything else is optional. Songs are produced per
// response and carry no references back into the client; holders keep
// independent copies.
type Song struct {
	File         string
	Title        string
	Artist       string
	AlbumArtist  string
	Album        string
	Date         string
	LastModified string
	Duration     time.Duration // zero when the daemon did not report one
	Pos          int           // queue position, -1 outside the queue
	ID           int           // queue id, -1 outside the queue

	// Tags holds extension tags not covered by the fields above.
	Tags map[string]string
}

// DisplayName returns the title when present, else the filename.
func (s *Song) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.File
}

// FolderURI returns the song's URI with the filename stripped, retaining
// the trailing slash. Songs at the database root map to "".
func (s *Song) FolderURI() string {
	idx := strings.LastIndex(s.File, "/")
	if idx < 0 {
		return ""
	}
	return s.File[:idx+1]
}

// setField applies one response pair to the song. Unknown keys land in
// Tags.
func (s *Song) setField(p Pair) {
	switch p.Key {
	case "file":
		s.File = p.Value
	case "Title":
		s.Title = p.Value
	case "Artist":
		s.Artist = p.Value
	case "AlbumArtist":
		s.AlbumArtist = p.Value
	case "Album":
		s.Album = p.Value
	case "Date":
		s.Date = p.Value
	case "Last-Modified":
		s.LastModified = p.Value
	case "duration":
		if secs, err := strconv.ParseFloat(p.Value, 64); err == nil {
			s.Duration = time.Duration(secs * float64(time.Second))
		}
	case "Time":
		// Whole-second fallback sent by older daemons; duration wins.
		if s.Duration == 0 {
			if secs, err := strconv.Atoi(p.Value); err == nil {
				s.Duration = time.Duration(secs) * time.Second
			}
		}
	case "Pos":
		if n, err := strconv.Atoi(p.Value); err == nil {
			s.Pos = n
		}
	case "Id":
		if n, err := strconv.Atoi(p.Value); err == nil {
			s.ID = n
		}
	default:
		if s.Tags == nil {
			s.Tags = make(map[string]string)
		}
		s.Tags[p.Key] = p.Value
	}
}

// songFromPairs builds a Song from a run of response pairs. A missing
// file key is a protocol error.
func songFromPairs(pairs []Pair) (*Song, error) {
	s := &Song{Pos: -1, ID: -1}
	for _, p := range pairs {
		s.setField(p)
	}
	if s.File == "" {
		return nil, protocolErrorf("song record without file key")
	}
	return s, nil
}

// Pairs renders the song back into protocol key/value pairs. Parsing a
// song and re-serialising it is a fixed point on the recognised fields.
func (s *Song) Pairs() []Pair {
	pairs := []Pair{{Key: "file", Value: s.File}}
	add := func(k, v string) {
		if v != "" {
			pairs = append(pairs, Pair{Key: k, Value: v})
		}
	}
	add("Title", s.Title)
	add("Artist", s.Artist)
	add("AlbumArtist", s.AlbumArtist)
	add("Album", s.Album)
	add("Date", s.Date)
	add("Last-Modified", s.LastModified)
	if s.Duration > 0 {
		pairs = append(pairs, Pair{Key: "duration", Value: strconv.FormatFloat(s.Duration.Seconds(), 'f', 3, 64)})
	}
	if s.Pos >= 0 {
		pairs = append(pairs, Pair{Key: "Pos", Value: strconv.Itoa(s.Pos)})
	}
	if s.ID >= 0 {
		pairs = append(pairs, Pair{Key: "Id", Value: strconv.Itoa(s.ID)})
	}
	return pairs
}

// splitSongs splits a streamed enumeration into Songs; each file key
// starts a new record. Pairs before the first file key are ignored.
func splitSongs(pairs []Pair) ([]Song, error) {
	var songs []Song
	var current []Pair
	flush := func() error {
		if current == nil {
			return nil
		}
		s, err := songFromPairs(current)
		if err != nil {
			return err
		}
		songs = append(songs, *s)
		current = nil
		return nil
	}
	for _, p := range pairs {
		if p.Key == "file" {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if current != nil || p.Key == "file" {
			current = append(current, p)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return songs, nil
}

// Status is the daemon's transport snapshot.
type Status struct {
	State        PlayState
	Volume       int // -1 when no mixer is available
	Repeat       bool
	Random       bool
	Single       bool
	Consume      bool
	Elapsed      time.Duration
	Duration     time.Duration
	Song         int // queue position of the current song, -1 if none
	SongID       int
	QueueLength  int
	QueueVersion int
	Bitrate      int
	Audio        string // sample_rate:bits:channels as reported
	Error        string // sticky daemon-side error, empty when clear
}

// statusFromPairs parses a status response. The state key is required;
// everything else defaults. Unknown keys are ignored.
func statusFromPairs(pairs []Pair) (*Status, error) {
	st := &Status{Volume: -1, Song: -1, SongID: -1}
	seenState := false
	for _, p := range pairs {
		switch p.Key {
		case "state":
			ps, ok := parsePlayState(p.Value)
			if !ok {
				return nil, protocolErrorf("unknown play state %q", p.Value)
			}
			st.State = ps
			seenState = true
		case "volume":
			st.Volume, _ = strconv.Atoi(p.Value)
		case "repeat":
			st.Repeat = p.Value == "1"
		case "random":
			st.Random = p.Value == "1"
		case "single":
			st.Single = p.Value == "1"
		case "consume":
			st.Consume = p.Value == "1"
		case "elapsed":
			if secs, err := strconv.ParseFloat(p.Value, 64); err == nil {
				st.Elapsed = time.Duration(secs * float64(time.Second))
			}
		case "duration":
			if secs, err := strconv.ParseFloat(p.Value, 64); err == nil {
				st.Duration = time.Duration(secs * float64(time.Second))
			}
		case "song":
			st.Song, _ = strconv.Atoi(p.Value)
		case "songid":
			st.SongID, _ = strconv.Atoi(p.Value)
		case "playlistlength":
			st.QueueLength, _ = strconv.Atoi(p.Value)
		case "playlist":
			st.QueueVersion, _ = strconv.Atoi(p.Value)
		case "bitrate":
			st.Bitrate, _ = strconv.Atoi(p.Value)
		case "audio":
			st.Audio = p.Value
		case "error":
			st.Error = p.Value
		}
	}
	if !seenState {
		return nil, protocolErrorf("status response without state key")
	}
	return st, nil
}

// NodeKind classifies a library-tree node.
type NodeKind int

const (
	NodeUnknown NodeKind = iota
	NodeSong
	NodeFolder
	NodePlaylist
)

// String returns a human-readable representation of the NodeKind.
func (k NodeKind) String() string {
	switch k {
	case NodeSong:
		return "song"
	case NodeFolder:
		return "folder"
	case NodePlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// INode is one node of the library tree. Folder URIs carry a trailing
// slash. Song nodes embed the parsed Song.
type INode struct {
	URI          string
	LastModified string
	Kind         NodeKind
	Song         *Song
}

// splitNodes splits a listinfo response into nodes; file, directory, and
// playlist keys each start a new record.
func splitNodes(pairs []Pair) ([]INode, error) {
	var nodes []INode
	var current []Pair
	var kind NodeKind
	flush := func() error {
		if current == nil {
			return nil
		}
		node := INode{Kind: kind}
		switch kind {
		case NodeSong:
			s, err := songFromPairs(current)
			if err != nil {
				return err
			}
			node.URI = s.File
			node.LastModified = s.LastModified
			node.Song = s
		default:
			node.URI = current[0].Value
			for _, p := range current[1:] {
				if p.Key == "Last-Modified" {
					node.LastModified = p.Value
				}
			}
			if kind == NodeFolder && !strings.HasSuffix(node.URI, "/") {
				node.URI += "/"
			}
		}
		nodes = append(nodes, node)
		current = nil
		return nil
	}
	for _, p := range pairs {
		var k NodeKind
		switch p.Key {
		case "file":
			k = NodeSong
		case "directory":
			k = NodeFolder
		case "playlist":
			k = NodePlaylist
		default:
			if current != nil {
				current = append(current, p)
			}
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		kind = k
		current = []Pair{p}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return nodes, nil
}
