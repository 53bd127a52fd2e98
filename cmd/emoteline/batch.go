package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/emoteline/emoteline/utils"
	"github.com/pkg/errors"
)

// validExtensions lists the inputs picked up in directory mode.
var validExtensions = []string{".gif", ".png", ".apng", ".webp", ".mp4", ".webm", ".mov", ".mkv"}

// batch converts every supported file under src into dst, processing up to
// workers files at once.
func batch(src, dst string, j *job, workers int) error {
	if _, err := os.Stat(dst); err != nil {
		if err := os.MkdirAll(dst, 0755); err != nil {
			return errors.Wrap(err, "unable to create the destination directory")
		}
	}
	workers = utils.Clamp(workers, 1, maxWorkers)

	ext := ".gif"
	if j.forceAPNG {
		ext = ".png"
	}

	var wg sync.WaitGroup
	ch := make(chan result)
	done := make(chan any)
	defer close(done)

	paths, errc := walkDir(done, src, validExtensions)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			consumer(done, paths, dst, ext, j, ch)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var failed int
	for res := range ch {
		if res.err != nil {
			failed++
		}
		printStatus(res)
	}
	if err := <-errc; err != nil {
		return err
	}
	if failed > 0 {
		return errors.Errorf("%d file(s) could not be converted", failed)
	}
	return nil
}

// walkDir starts a goroutine to walk the specified directory tree in recursive manner
// and send the path of each supported file on the string channel.
// It sends the result of the walk on the error channel.
// It terminates in case done channel is closed.
func walkDir(
	done <-chan any,
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() || !isValidExtension(filepath.Ext(info.Name()), srcExts) {
				return nil
			}
			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// consumer converts the files received on paths and reports each outcome on res.
func consumer(
	done <-chan any,
	paths <-chan string,
	dest, ext string,
	j *job,
	res chan<- result,
) {
	for src := range paths {
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		out := j.convert(src, filepath.Join(dest, base+ext))

		select {
		case <-done:
			return
		case res <- out:
		}
	}
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	ext = strings.ToLower(ext)
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
