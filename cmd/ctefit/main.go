package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/desihub/ctecorr/calib"
	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/cte"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "ctefit.yml"
	k              = koanf.New(".")
)

// Config holds the paths ctefit needs: the instrument CTE calibration
// config and the directory fitted-parameter tables are written to.
type Config struct {
	// CalibConfig is the path of the YAML camera calibration config
	CalibConfig string `koanf:"calibconfig" yaml:"calibconfig"`

	// TableRoot is the directory holding ctecorrnight tables
	TableRoot string `koanf:"tableroot" yaml:"tableroot"`
}

func setupconfig() {
	k.Load(structs.Provider(Config{
		CalibConfig: "ctecalib.yml",
		TableRoot:   "."}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), kyaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `ctefit fits CCD charge-trap parameters from preprocessed flat-field
exposures and writes the per-night fitted-parameter table consumed by the
CTE correction code.

Usage:
	ctefit <command>

Commands:
	run <night> <preproc.fits> [<preproc.fits> ...]
	conf
	version
	help`
	fmt.Println(str)
}

func help() {
	str := `ctefit is configured via ctefit.yml:

calibconfig: path of the camera calibration config (which amplifiers have
             trap sectors, per camera)
tableroot:   directory the fitted-parameter table is written to

run takes the night (YEARMMDD) and at least one preprocessed flat FITS
file of the same camera, conventionally a ~1s and a ~120s flat so the two
flux levels constrain the trap's saturation behavior.`
	fmt.Println(str)
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("ctefit version %v\n", Version)
}

func run(args []string) {
	if len(args) < 2 {
		log.Fatal("usage: ctefit run <night> <preproc.fits> [<preproc.fits> ...]")
	}
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	night, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("bad night %q: %v", args[0], err)
	}

	images := make([]*ccd.Image, 0, len(args)-1)
	for _, path := range args[1:] {
		im, err := ccd.ReadImageFile(path)
		if err != nil {
			log.Fatalf("reading %s: %v", path, err)
		}
		im.Header.Night = night
		images = append(images, im)
	}

	cfg, err := calib.LoadConfig(c.CalibConfig)
	if err != nil {
		log.Fatal(err)
	}
	finder := calib.NewFinder(cfg, c.TableRoot)
	results, err := cte.FitCTE(images, finder)
	if err != nil {
		log.Fatal(err)
	}
	if len(results) == 0 {
		log.Printf("no CTE fits for night %d camera %s, not writing a table",
			night, images[0].Header.Camera)
		return
	}
	out := finder.TablePath(night, images[0].Header.Camera)
	if err := calib.WriteTable(out, results); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d CTE fits to %s", len(results), out)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "conf":
		printconf()
	case "version":
		pversion()
	case "run":
		run(args[2:])
	default:
		log.Fatal("unknown command")
	}
}
