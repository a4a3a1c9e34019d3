package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"gopkg.in/yaml.v3"

	"github.com/mkivist/backbeat"
	"github.com/mkivist/backbeat/midiin"
	"github.com/mkivist/backbeat/oto"
	"github.com/mkivist/backbeat/synth"
	"github.com/mkivist/backbeat/version"
)

func main() {
	voices := flag.Int("voices", 0, "Maximum polyphony. 0 uses the default.")
	params := flag.String("params", "", "Parameter preset .yml file to load at startup.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	audioContext, err := oto.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
		os.Exit(1)
	}
	defer audioContext.Close()
	engine := synth.NewEngine(44100, *voices)
	if *params != "" {
		data, err := os.ReadFile(*params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read params file: %v\n", err)
			os.Exit(1)
		}
		var preset backbeat.Params
		if err := yaml.Unmarshal(data, &preset); err != nil {
			fmt.Fprintf(os.Stderr, "could not parse params file: %v\n", err)
			os.Exit(1)
		}
		engine.SetParams(preset)
	}
	player := synth.NewPlayer(engine)
	playWaiter := audioContext.Play(player)
	input, err := midiin.Open(player)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open midi input: %v\n", err)
		playWaiter.Close()
		os.Exit(1)
	}
	defer input.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	player.TrySend(synth.PanicMsg{})
	playWaiter.Close()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Backbeat live synth: plays MIDI input through the polyphonic engine.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
