package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkivist/backbeat"
	"github.com/mkivist/backbeat/oto"
	"github.com/mkivist/backbeat/render"
	"github.com/mkivist/backbeat/version"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the same directory where the project file is.")
	play := flag.Bool("p", false, "Play the rendered projects (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the mixdown as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the mixdown as .wav file. By default, saves stereo float32 buffer to disk.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	rate := flag.Int("rate", 0, "Minimum output sample rate. The decoded source material can raise it further.")
	quiet := flag.Bool("q", false, "Do not print render progress.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*play = true
	}
	var audioContext backbeat.AudioContext
	if *play {
		var err error
		audioContext, err = oto.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				os.Stdout.Write(contents)
				return nil
			}
			dir, name := filepath.Split(filename)
			if *directory != "" {
				dir = *directory
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			if dir != "" {
				if err := os.MkdirAll(dir, os.ModePerm); err != nil {
					return fmt.Errorf("could not create output directory %v: %v", dir, err)
				}
			}
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		project, err := backbeat.ParseProject(inputBytes)
		if err != nil {
			return fmt.Errorf("could not parse project %v: %v", filename, err)
		}
		projectDir := filepath.Dir(filename)
		renderer := render.Renderer{
			Decode:     diskDecoder(projectDir),
			SampleRate: *rate,
		}
		if !*quiet {
			renderer.Progress = func(stage string, frac float64) {
				fmt.Fprintf(os.Stderr, "\r%v %3.0f%%", stage, frac*100)
				if frac >= 1 {
					fmt.Fprintln(os.Stderr)
				}
			}
		}
		buffer, err := renderer.Render(project)
		if err != nil {
			return fmt.Errorf("rendering failed: %v", err)
		}
		var playWaiter backbeat.CloserWaiter
		if *play {
			playWaiter = audioContext.Play(buffer.Data.Source())
		}
		if *rawOut {
			raw, err := buffer.Data.Raw(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			wav, err := buffer.Wav(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if *play {
			playWaiter.Wait()
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			files, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			if err := process(param); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// diskDecoder resolves clip sources as .wav files relative to the project
// file's directory.
func diskDecoder(dir string) backbeat.DecodeFunc {
	return func(src string) (*backbeat.Buffer, error) {
		path := src
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read clip source %v: %w", path, err)
		}
		return backbeat.ReadWav(data)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Backbeat command line utility for mixing down .yml project files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
