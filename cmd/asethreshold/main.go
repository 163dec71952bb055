package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/opal-photonics/asesweep/analysis"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "2"

	// ConfigFileName is what it sounds like
	ConfigFileName = "asethreshold.yml"
	k              = koanf.New(".")
)

type config struct {
	// CalibrationFile is the angle,energy CSV for the filter wheel.
	CalibrationFile string `koanf:"calibrationFile" yaml:"calibrationFile"`

	// OutFile is where the reduced table goes; empty writes to stdout.
	OutFile string `koanf:"outFile" yaml:"outFile"`

	Beam analysis.Beam `koanf:"beam" yaml:"beam"`

	Smoothing analysis.SavGol `koanf:"smoothing" yaml:"smoothing"`
}

func defaults() config {
	return config{
		CalibrationFile: "calibration.csv",
		Beam: analysis.Beam{
			ReferenceEnergyJ: 1e-6,
			FilterOD:         1,
			LensTransmission: 0.92,
			SpotDiameterM:    2e-3,
		},
		Smoothing: analysis.SavGol{Window: 91, Order: 3},
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
	str := `asethreshold reduces a completed asesweep run directory to a
fluence-dependent emission table and extracts the ASE threshold from the
collapse of the spectral width.

Usage:
	asethreshold <command> [args]

Commands:
	run <run directory>
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `asethreshold needs the filter wheel calibration (an angle,energy CSV; a
header line and # comments are fine) and the beam geometry from its .yaml
file.  Generate a starting configuration with "asethreshold mkconf".

For every successful point in the run it computes the on-sample fluence,
the Savitzky-Golay smoothed net spectrum's FWHM and its integrated
intensity per second of integration.  The threshold is the fluence where
the FWHM-vs-fluence spline falls steepest.

The table is CSV on stdout (or outFile); the threshold goes to stderr so
the table stays machine-readable.`
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
	fmt.Printf("asethreshold version %v\n", Version)
}

func run(dir string) {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}

	cal, err := analysis.LoadCalibration(c.CalibrationFile)
	if err != nil {
		log.Fatal(err)
	}
	sg, err := analysis.NewSavGol(c.Smoothing.Window, c.Smoothing.Order)
	if err != nil {
		log.Fatal(err)
	}
	red := analysis.Reducer{Calibration: cal, Beam: c.Beam, Smoother: sg}

	tab, err := red.Reduce(dir)
	if err != nil {
		log.Fatal(err)
	}
	out := os.Stdout
	if c.OutFile != "" {
		out, err = os.Create(c.OutFile)
		if err != nil {
			log.Fatal(err)
		}
		defer out.Close()
	}
	if err := tab.WriteCSV(out); err != nil {
		log.Fatal(err)
	}
	if tab.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d unreducible points\n", tab.Skipped)
	}
	th, err := tab.Threshold()
	if err != nil {
		log.Fatalf("no threshold: %v", err)
	}
	fmt.Fprintf(os.Stderr, "threshold: %.6g J/m^2\n", th)
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
		if len(args) < 3 {
			log.Fatal("run needs a run directory")
		}
		run(args[2])
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
