package config

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"peercam/pkg/errors"
	"peercam/pkg/validation"
)

// Parse turns a command line into validated Settings. It never exits the
// process: the returned error carries the exit code the caller should use.
// A nil Settings with a zero-coded error means an informational request
// (--version or --help) was already written to stdout.
func Parse(args []string, stdout, stderr io.Writer) (*Settings, error) {
	var settings *Settings
	versionShown := false

	cli.VersionPrinter = func(cCtx *cli.Context) {
		versionShown = true
		fmt.Fprintln(cCtx.App.Writer, VersionString())
	}

	gFlags := globalFlags()
	dpFlags := directPeerFlags()
	brFlags := brokerFlags()

	app := &cli.App{
		Name:            "peercam",
		Usage:           "WebRTC native client",
		Version:         Version,
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		Flags:           gFlags,
		Commands: []*cli.Command{
			{
				Name:  "direct-peer",
				Usage: "serve browser peers directly",
				Flags: dpFlags,
				Action: func(cCtx *cli.Context) error {
					s, err := commonSettings(cCtx)
					if err != nil {
						return err
					}
					s.Port = cCtx.Int("port")
					s.DocumentRoot = cCtx.String("doc-root")
					s.Backends = map[BackendKind]bool{BackendDirectPeer: true}
					settings = s
					return nil
				},
			},
			{
				Name:      "broker",
				Usage:     "connect through a signaling broker",
				ArgsUsage: "SIGNALING-HOST CHANNEL-ID",
				Flags:     brFlags,
				Action: func(cCtx *cli.Context) error {
					host := cCtx.Args().Get(0)
					channel := cCtx.Args().Get(1)
					if host == "" {
						return errors.NewConfigurationError("SIGNALING-HOST is required")
					}
					if channel == "" {
						return errors.NewConfigurationError("CHANNEL-ID is required")
					}
					if err := validation.ValidateChannelID(channel); err != nil {
						return errors.NewConfigurationError(err.Error())
					}
					// Bare host:port is allowed; it gets the ws scheme
					// at dial time.
					hostURL := host
					if !strings.Contains(hostURL, "://") {
						hostURL = "ws://" + hostURL
					}
					if err := validation.ValidateSignalingURL(hostURL); err != nil {
						return errors.NewConfigurationError(err.Error())
					}

					s, err := commonSettings(cCtx)
					if err != nil {
						return err
					}
					s.SignalingHost = host
					s.ChannelID = channel
					s.AutoConnect = cCtx.Bool("auto")
					s.RelayPort = cCtx.Int("port")
					s.SignalingKey = cCtx.String("signaling-key")
					s.Backends = map[BackendKind]bool{BackendKind(cCtx.String("protocol")): true}
					settings = s
					return nil
				},
			},
		},
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() > 0 {
				return errors.NewConfigurationError(
					fmt.Sprintf("unknown subcommand %q", cCtx.Args().First()))
			}
			cli.ShowAppHelp(cCtx)
			return errors.NewUsageError("a subcommand is required")
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}

	reordered := reorderArgs(args, gFlags, map[string][]cli.Flag{
		"direct-peer": dpFlags,
		"broker":      brFlags,
	})

	if err := app.Run(reordered); err != nil {
		if errors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, err.Error(), errors.ExitUsage)
	}

	if settings != nil {
		return settings, nil
	}
	if versionShown {
		return nil, errors.NewVersionRequest()
	}
	// --help short-circuits command dispatch inside the library.
	return nil, errors.NewAppError(errors.ErrCodeUsage, "help requested", errors.ExitOK)
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "no-video", Usage: "disable video"},
		&cli.BoolFlag{Name: "no-audio", Usage: "disable audio"},
		&cli.StringFlag{
			Name:   "video-codec",
			Usage:  "video codec",
			Value:  "VP8",
			Action: enumFlag("VP8", "VP9", "H264"),
		},
		&cli.StringFlag{
			Name:   "audio-codec",
			Usage:  "audio codec",
			Value:  "OPUS",
			Action: enumFlag("OPUS", "PCMU"),
		},
		&cli.IntFlag{
			Name:   "video-bitrate",
			Usage:  "video bitrate in kbps",
			Action: rangeFlag(1, 30000),
		},
		&cli.IntFlag{
			Name:   "audio-bitrate",
			Usage:  "audio bitrate in kbps",
			Action: rangeFlag(6, 510),
		},
		&cli.StringFlag{
			Name:   "resolution",
			Usage:  "capture resolution",
			Value:  "VGA",
			Action: enumFlag("QVGA", "VGA", "HD", "FHD"),
		},
		&cli.IntFlag{
			Name:   "framerate",
			Usage:  "capture framerate",
			Value:  30,
			Action: rangeFlag(1, 60),
		},
		&cli.StringFlag{
			Name:   "priority",
			Usage:  "degradation preference (experimental)",
			Value:  "BALANCE",
			Action: enumFlag("BALANCE", "FRAMERATE", "RESOLUTION"),
		},
		&cli.BoolFlag{Name: "daemon", Usage: "run detached"},
		&cli.IntFlag{
			Name:   "log-level",
			Usage:  "console log verbosity",
			Value:  5,
			Action: rangeFlag(0, 5),
		},
		&cli.StringFlag{
			Name:  "video-device",
			Usage: "video source: an .ivf file or rtp://host:port",
		},
		&cli.StringFlag{
			Name:  "render",
			Usage: "write received video to this IVF file",
		},
		&cli.StringFlag{
			Name:  "serial",
			Usage: "serial device for the data channel bridge (device[,rate])",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to the YAML configuration file",
		},
		&cli.StringFlag{
			Name:   "metadata",
			Hidden: true,
			Action: func(_ *cli.Context, v string) error {
				if err := validation.JSONValue(v); err != nil {
					return errors.NewConfigurationError(err.Error())
				}
				return nil
			},
		},
	}
}

func directPeerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:   "port",
			Usage:  "listen port",
			Value:  8080,
			Action: rangeFlag(0, 65535),
		},
		&cli.StringFlag{
			Name:  "doc-root",
			Usage: "static document root",
			Value: "html",
		},
	}
}

func brokerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "auto", Usage: "connect as soon as the backend starts"},
		&cli.IntFlag{
			Name:   "port",
			Usage:  "loopback control port (-1 disables the control API)",
			Value:  -1,
			Action: rangeFlag(0, 65535),
		},
		&cli.StringFlag{
			Name:   "protocol",
			Usage:  "broker protocol",
			Value:  "relay",
			Action: enumFlag("relay", "rendezvous"),
		},
		&cli.StringFlag{
			Name:  "signaling-key",
			Usage: "key used to sign signaling tokens",
		},
	}
}

// commonSettings collects the flags shared by every subcommand.
func commonSettings(cCtx *cli.Context) (*Settings, error) {
	s := &Settings{
		NoVideo:      cCtx.Bool("no-video"),
		NoAudio:      cCtx.Bool("no-audio"),
		VideoCodec:   cCtx.String("video-codec"),
		AudioCodec:   cCtx.String("audio-codec"),
		VideoBitrate: cCtx.Int("video-bitrate"),
		AudioBitrate: cCtx.Int("audio-bitrate"),
		Resolution:   cCtx.String("resolution"),
		Framerate:    cCtx.Int("framerate"),
		Priority:     cCtx.String("priority"),
		Daemon:       cCtx.Bool("daemon"),
		LogLevel:     cCtx.Int("log-level"),
		VideoDevice:  cCtx.String("video-device"),
		RenderFile:   cCtx.String("render"),
		ConfigPath:   cCtx.String("config"),
	}

	if raw := cCtx.String("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Metadata); err != nil {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("metadata %s is not a JSON object", raw))
		}
	}

	if spec := cCtx.String("serial"); spec != "" {
		device, rate, err := ParseSerialDevice(spec)
		if err != nil {
			return nil, errors.NewConfigurationError(err.Error())
		}
		s.SerialDevice = device
		s.SerialRate = rate
	}

	return s, nil
}

func enumFlag(allowed ...string) func(*cli.Context, string) error {
	check := validation.OneOf(allowed...)
	return func(_ *cli.Context, v string) error {
		if err := check(v); err != nil {
			return errors.NewConfigurationError(err.Error())
		}
		return nil
	}
}

func rangeFlag(min, max int) func(*cli.Context, int) error {
	check := validation.IntRange(min, max)
	return func(_ *cli.Context, v int) error {
		if err := check(v); err != nil {
			return errors.NewConfigurationError(err.Error())
		}
		return nil
	}
}

// flagNameSets splits a flag list into value-taking and boolean flag
// name lookups, both keyed by the dashed form.
func flagNameSets(flags []cli.Flag) (values, bools map[string]bool) {
	values = make(map[string]bool)
	bools = make(map[string]bool)
	for _, f := range flags {
		_, isBool := f.(*cli.BoolFlag)
		for _, name := range f.Names() {
			dashed := "--" + name
			if len(name) == 1 {
				dashed = "-" + name
			}
			if isBool {
				bools[dashed] = true
			} else {
				values[dashed] = true
			}
		}
	}
	return values, bools
}

// reorderArgs rewrites a command line so flags precede positional
// arguments, the way the upstream parser family accepts them. Global
// flags written after the subcommand are hoisted in front of it.
// Unknown flags are left in place for the parser to report.
func reorderArgs(args []string, global []cli.Flag, commands map[string][]cli.Flag) []string {
	if len(args) == 0 {
		return args
	}

	gValues, gBools := flagNameSets(global)
	gBools["--version"] = true
	gBools["-v"] = true
	gBools["--help"] = true
	gBools["-h"] = true

	flagName := func(tok string) (name string, hasInline bool) {
		if eq := strings.Index(tok, "="); eq > 0 {
			return tok[:eq], true
		}
		return tok, false
	}

	out := []string{args[0]}
	rest := args[1:]
	var globals []string

	// leading global flags, then the subcommand
	i := 0
	for i < len(rest) {
		tok := rest[i]
		if !strings.HasPrefix(tok, "-") {
			break
		}
		name, inline := flagName(tok)
		globals = append(globals, tok)
		if gValues[name] && !inline && i+1 < len(rest) {
			i++
			globals = append(globals, rest[i])
		}
		i++
	}
	if i >= len(rest) {
		return append(out, globals...)
	}

	cmd := rest[i]
	i++
	cValues, cBools := flagNameSets(commands[cmd])

	var locals, positionals []string
	for i < len(rest) {
		tok := rest[i]
		name, inline := flagName(tok)
		switch {
		case !strings.HasPrefix(tok, "-"):
			positionals = append(positionals, tok)
		case cValues[name] || cBools[name]:
			locals = append(locals, tok)
			if cValues[name] && !inline && i+1 < len(rest) {
				i++
				locals = append(locals, rest[i])
			}
		case gValues[name] || gBools[name]:
			globals = append(globals, tok)
			if gValues[name] && !inline && i+1 < len(rest) {
				i++
				globals = append(globals, rest[i])
			}
		default:
			locals = append(locals, tok)
		}
		i++
	}

	out = append(out, globals...)
	out = append(out, cmd)
	out = append(out, locals...)
	return append(out, positionals...)
}
