package detail

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
)

// Download saves the attachments: a single one as-is, several as one "{title}.zip"
// holding every attachment that could be fetched, in attachment order. It returns
// where the file was saved.
func (v *View) Download(ctx context.Context) (string, error) {
	if err := v.begin(ActionDownload); err != nil {
		return "", err
	}
	defer v.end()

	v.mu.Lock()
	title := v.material.Title
	atts := append([]model.Attachment(nil), v.material.Attachments...)
	v.mu.Unlock()

	switch len(atts) {
	case 0:
		v.d.Dialog.Alert(MsgNoAttachments)
		return "", errs.ErrNoAttachments
	case 1:
		d, err := v.src.DownloadAttachment(ctx, v.id, atts[0].ID)
		if err != nil {
			if errs.Handled(err) {
				return "", fmt.Errorf("download attachment %d: %w", atts[0].ID, err)
			}
			v.log.Error("attachment download failed", zap.Int64("attachment_id", atts[0].ID), zap.Error(err))
			v.d.Dialog.Alert(errs.Message(err, MsgDownloadFailed))
			return "", fmt.Errorf("download attachment %d: %w", atts[0].ID, err)
		}
		return v.save(d.Filename, d.Data)
	}

	files, err := v.fetchAll(ctx, atts)
	if err != nil {
		return "", fmt.Errorf("download material %d: %w", v.id, err)
	}
	data, n, err := buildZip(files, time.Now())
	if err != nil {
		v.d.Dialog.Alert(MsgDownloadFailed)
		return "", fmt.Errorf("zip material %d: %w", v.id, err)
	}
	if n == 0 {
		v.d.Dialog.Alert(MsgDownloadFailed)
		return "", fmt.Errorf("zip material %d: every attachment failed: %w", v.id, errs.ErrNoAttachments)
	}
	return v.save(zipName(title), data)
}

// fetchAll downloads every attachment with bounded concurrency. A failed fetch
// leaves a nil slot and is logged; a 401 stops the batch and is returned.
func (v *View) fetchAll(ctx context.Context, atts []model.Attachment) ([]*model.Download, error) {
	out := make([]*model.Download, len(atts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.d.Parallel)
	for i, a := range atts {
		g.Go(func() error {
			d, err := v.src.DownloadAttachment(gctx, v.id, a.ID)
			if errs.Handled(err) {
				return err
			}
			if err != nil {
				v.log.Warn("attachment skipped from zip",
					zap.Int64("attachment_id", a.ID),
					zap.String("file", a.OriginalFileName),
					zap.Error(err),
				)
				return nil
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *View) save(name string, data []byte) (string, error) {
	where, err := v.d.Saver.Save(name, data)
	if err != nil {
		v.log.Error("saving download failed", zap.String("file", name), zap.Error(err))
		v.d.Dialog.Alert(MsgDownloadFailed)
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return where, nil
}

// buildZip writes the non-nil downloads into a zip archive and returns how many
// entries it holds. Repeated names get a " (n)" suffix.
func buildZip(files []*model.Download, mod time.Time) ([]byte, int, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := map[string]int{}
	n := 0
	for _, f := range files {
		if f == nil {
			continue
		}
		name := uniqueName(seen, f.Filename)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mod})
		if err != nil {
			return nil, 0, err
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, 0, err
		}
		n++
	}
	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}

func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	c := seen[name]
	if c == 1 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), c, ext)
}

// zipName is "{title}.zip" with path separators replaced.
func zipName(title string) string {
	t := strings.TrimSpace(strings.NewReplacer("/", "_", `\`, "_").Replace(title))
	if t == "" {
		t = "material"
	}
	return t + ".zip"
}
