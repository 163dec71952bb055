package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	yml "gopkg.in/yaml.v2"

	"github.com/opal-photonics/asesweep/elliptec"
	"github.com/opal-photonics/asesweep/horiba"
	"github.com/opal-photonics/asesweep/manifest"
	"github.com/opal-photonics/asesweep/preview"
	"github.com/opal-photonics/asesweep/sapphire"
	"github.com/opal-photonics/asesweep/sweep"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "2"

	// ConfigFileName is what it sounds like
	ConfigFileName = "asesweep.yml"
	k              = koanf.New(".")
)

type motorConfig struct {
	// Port is the serial port the Elliptec stage is on.
	Port string `koanf:"port" yaml:"port"`

	// Address is the single-character bus address of the stage.
	Address string `koanf:"address" yaml:"address"`
}

type pulserConfig struct {
	// Port is the serial port the pulse generator is on.
	Port string `koanf:"port" yaml:"port"`

	PeriodS    float64 `koanf:"periodS" yaml:"periodS"`
	WidthS     float64 `koanf:"widthS" yaml:"widthS"`
	AmplitudeV float64 `koanf:"amplitudeV" yaml:"amplitudeV"`
}

type spectrometerConfig struct {
	// Addr is the host:port of the LabSpec bridge.
	Addr string `koanf:"addr" yaml:"addr"`
}

type config struct {
	// SaveDir is where run directories are created.
	SaveDir string `koanf:"saveDir" yaml:"saveDir"`

	// Simulate swaps every instrument for its simulator; no hardware is
	// touched.
	Simulate bool `koanf:"simulate" yaml:"simulate"`

	// PreviewAddr is the bind address of the live preview server; empty
	// disables it.
	PreviewAddr string `koanf:"previewAddr" yaml:"previewAddr"`

	Motor        motorConfig        `koanf:"motor" yaml:"motor"`
	Pulser       pulserConfig       `koanf:"pulser" yaml:"pulser"`
	Spectrometer spectrometerConfig `koanf:"spectrometer" yaml:"spectrometer"`
	Sweep        sweep.Config       `koanf:"sweep" yaml:"sweep"`
}

func defaults() config {
	return config{
		SaveDir:     "Measurements",
		PreviewAddr: ":8080",
		Motor:       motorConfig{Port: "/dev/ttyUSB0", Address: "0"},
		Pulser: pulserConfig{
			Port:       "/dev/ttyUSB1",
			PeriodS:    0.1,
			WidthS:     5e-6,
			AmplitudeV: 5,
		},
		Spectrometer: spectrometerConfig{Addr: "192.168.0.20:5555"},
		Sweep:        sweep.DefaultConfig(),
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `asesweep runs an ASE threshold measurement: it sweeps the filter wheel,
triggers the excitation pulser and reads out the spectrometer at each angle,
and writes one dated run directory per sweep.

Usage:
	asesweep <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `asesweep is amenable to configuration via its .yaml file.  For a primer on
YAML, see https://yaml.org/start.html

Generate a starting configuration with "asesweep mkconf", then edit the
serial ports and the bridge address for your bench.  "asesweep conf" prints
the configuration that a run would use, defaults and file merged.

Set simulate: true to run against the built-in instrument simulators; no
hardware is needed and the output tree has the same shape as a real run.

While a sweep runs, the latest scan point is served at previewAddr:
  GET /latest    the signal, background and net spectra as JSON
  GET /plot.png  the same three traces rendered as a plot

Ctrl-C aborts gracefully: the point in flight finishes, the stage homes,
the pulser output is gated off, and the manifest keeps every completed
point.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("asesweep version %v\n", Version)
}

// devices builds the three instrument handles, simulated or real.
func devices(c config) sweep.Devices {
	pulse := sapphire.PulseConfig{
		PeriodS:    c.Pulser.PeriodS,
		WidthS:     c.Pulser.WidthS,
		AmplitudeV: c.Pulser.AmplitudeV,
	}
	if c.Simulate {
		sim := horiba.NewSim(time.Now().UnixNano())
		return sweep.Devices{
			Rotator:      &elliptec.Sim{},
			Trigger:      sapphire.Configured{P: &sapphire.Sim{OnSet: sim.SetTriggered}, Config: pulse},
			Spectrometer: sim,
		}
	}
	addr := byte('0')
	if c.Motor.Address != "" {
		addr = c.Motor.Address[0]
	}
	return sweep.Devices{
		Rotator:      elliptec.New(c.Motor.Port, addr, elliptec.DefaultTimeout),
		Trigger:      sapphire.Configured{P: sapphire.New(c.Pulser.Port, sapphire.DefaultTimeout), Config: pulse},
		Spectrometer: horiba.New(c.Spectrometer.Addr, horiba.DefaultTimeout),
	}
}

func run() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Sweep.Validate(); err != nil {
		log.Fatal(err)
	}

	run, err := manifest.Create(c.SaveDir, manifest.Meta{
		TargetWavelength: c.Sweep.WavelengthNM,
		GratingIndex:     c.Sweep.GratingIndex,
		StartAngle:       c.Sweep.Angles.Start,
		EndAngle:         c.Sweep.Angles.End,
		Points:           c.Sweep.Angles.Count,
		PresetsS:         c.Sweep.Presets,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("run directory:", run.Dir)

	logf, err := os.Create(filepath.Join(run.Dir, "run.log"))
	if err != nil {
		log.Fatal(err)
	}
	defer logf.Close()
	logger := log.New(io.MultiWriter(os.Stderr, logf), "", log.LstdFlags)

	o, err := sweep.New(c.Sweep, devices(c), run)
	if err != nil {
		log.Fatal(err)
	}
	o.Log = logger

	box := preview.NewMailbox(2)
	o.Preview = box
	if c.PreviewAddr != "" {
		go func() {
			srv := preview.NewServer(box)
			logger.Printf("preview at http://%s/plot.png", c.PreviewAddr)
			if err := http.ListenAndServe(c.PreviewAddr, srv.Router()); err != nil {
				logger.Printf("preview server: %v", err)
			}
		}()
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[11],
		SuffixAutoColon: true,
		Message:         "starting",
		StopCharacter:   "*",
	})
	if err == nil && spinner.Start() == nil {
		o.OnState = func(s sweep.State) { spinner.Message(s.String()) }
		o.OnPoint = func(rec manifest.Record) {
			spinner.Message(fmt.Sprintf("point %d/%d at %.2f deg [%s]",
				rec.Index+1, c.Sweep.Angles.Count, rec.Angle, rec.Status))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := o.Run(ctx)
	if spinner != nil {
		spinner.Stop()
	}
	fmt.Printf("%s: %d points, %d failed\n", res.State, res.Attempted, res.Failed)
	if res.Err != nil {
		logger.Printf("run ended with: %v", res.Err)
		os.Exit(1)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
