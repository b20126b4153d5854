// Package playback manages the external streaming audio player the
// reply MP3 is piped into.
package playback

import "os/exec"

// LaunchSpec is the result of player discovery: which binary to spawn
// and with what arguments. Discovery runs once at startup and the result
// is held immutably afterwards.
type LaunchSpec struct {
	Available bool
	Path      string
	Args      []string
}

// probeCommand checks a candidate binary by running its version flag.
type probe struct {
	name        string
	versionArgs []string
	playArgs    []string
}

var candidates = []probe{
	// ffplay ships with ffmpeg and handles MP3 from stdin without buffering
	// the whole stream first.
	{
		name:        "ffplay",
		versionArgs: []string{"-version"},
		playArgs:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-i", "pipe:0"},
	},
	// mpv fallback
	{
		name:        "mpv",
		versionArgs: []string{"--version"},
		playArgs:    []string{"--no-video", "--no-terminal", "--no-cache", "-"},
	},
}

// Discover probes for the best available streaming MP3 player.
func Discover() LaunchSpec {
	return discover(func(name string, args ...string) error {
		path, err := exec.LookPath(name)
		if err != nil {
			return err
		}
		cmd := exec.Command(path, args...)
		return cmd.Run()
	})
}

func discover(runProbe func(name string, args ...string) error) LaunchSpec {
	for _, c := range candidates {
		if err := runProbe(c.name, c.versionArgs...); err != nil {
			continue
		}
		return LaunchSpec{Available: true, Path: c.name, Args: c.playArgs}
	}
	return LaunchSpec{}
}
