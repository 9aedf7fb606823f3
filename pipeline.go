package patronlink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bodgit/patronlink/avatar"
)

type job struct {
	slot  avatar.ID
	index int
	image []byte
}

func (l *Linker) generateJobs(ctx context.Context, images [][]byte) (<-chan job, <-chan error, error) {
	if len(images) > len(l.slots) {
		return nil, nil, avatar.ErrNotEnoughSlots
	}

	out := make(chan job)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for i, image := range images {
			select {
			case out <- job{slot: l.slots[i], index: i, image: image}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return out, errc, nil
}

func (l *Linker) uploadImage(ctx context.Context, j job) error {
	f, err := os.CreateTemp(l.tempDir, "patrons-export-*.tmp.png")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(j.image); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	l.logger.Debug("uploading image", "index", j.index, "slot", j.slot, "file", f.Name())

	if err := l.uploader.Upload(ctx, j.slot, f.Name()); err != nil {
		return fmt.Errorf("upload %s: %w", j.slot, err)
	}

	return nil
}

func (l *Linker) uploadWorker(ctx context.Context, in <-chan job) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for j := range in {
			if err := l.uploadImage(ctx, j); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (l *Linker) upload(ctx context.Context, images [][]byte) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var errcList []<-chan error

	jobs, errc, err := l.generateJobs(ctx, images)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < min(l.workers, len(images)); i++ {
		errc, err := l.uploadWorker(ctx, jobs)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
