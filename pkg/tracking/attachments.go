package tracking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/pkg/storage"
)

const MaxAttachmentSize = 20 << 20

var attachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

type Upload struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// Attach stores a photo or PDF against an open job. The content type is
// sniffed from the data, not taken from the client.
func (s *Service) Attach(ctx context.Context, actor uuid.UUID, id uuid.UUID, up Upload) (*models.Attachment, error) {
	if s.store == nil {
		return nil, errors.NotSupportedf("attachments")
	}
	if up.Size > MaxAttachmentSize {
		return nil, apperr.Invalid("file", "must be at most 20MB")
	}

	var job models.ActiveService
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "service")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Annotate(err, "read upload")
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !attachmentTypes[contentType] {
		return nil, apperr.Invalid("file", "must be an image or a PDF")
	}

	key := fmt.Sprintf("services/%s/%s-%s", job.TrackingCode, uuid.NewString()[:8], storage.ObjectName(up.FileName))
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), up.Body), MaxAttachmentSize+1)
	counter := &countingReader{r: body}
	url, err := s.store.Put(ctx, key, contentType, counter)
	if err != nil {
		return nil, errors.Annotate(err, "store attachment")
	}
	if counter.n > MaxAttachmentSize {
		s.removeObjects(ctx, []models.Attachment{{ObjectKey: key}})
		return nil, apperr.Invalid("file", "must be at most 20MB")
	}

	att := models.Attachment{
		TrackingCode: job.TrackingCode,
		FileName:     up.FileName,
		ObjectKey:    key,
		URL:          url,
		ContentType:  contentType,
		Size:         counter.n,
		UploadedBy:   actorRef(actor),
	}
	if err := s.db.WithContext(ctx).Create(&att).Error; err != nil {
		s.removeObjects(ctx, []models.Attachment{att})
		return nil, errors.Annotate(err, "save attachment")
	}
	s.log.WithFields(logrus.Fields{"tracking_code": job.TrackingCode, "key": key}).Info("attachment stored")
	return &att, nil
}

// Attachments lists files for an open job or, once archived, for the
// completed record with that id.
func (s *Service) Attachments(ctx context.Context, id uuid.UUID) ([]models.Attachment, error) {
	db := s.db.WithContext(ctx)
	var code string
	var job models.ActiveService
	err := db.Select("tracking_code").First(&job, "id = ?", id).Error
	switch {
	case err == nil:
		code = job.TrackingCode
	case errors.Is(err, gorm.ErrRecordNotFound):
		var rec models.CompletedService
		if err := db.Select("tracking_code").First(&rec, "id = ?", id).Error; err != nil {
			return nil, apperr.FromDB(err, "service")
		}
		code = rec.TrackingCode
	default:
		return nil, errors.Trace(err)
	}

	out := []models.Attachment{}
	if err := db.Where("tracking_code = ?", code).Order("created_at").Find(&out).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return out, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
