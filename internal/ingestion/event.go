package ingestion

import (
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"sheetload/pkg/contracts/domain"
)

// RefsFromS3Event returns the objects created by an S3 event notification,
// with keys URL-decoded. Records for other event kinds are skipped. A key
// that cannot be decoded is returned as an Outcome error rather than
// dropping the whole event.
func RefsFromS3Event(ev events.S3Event) ([]domain.ObjectRef, Outcomes) {
	var (
		refs    []domain.ObjectRef
		invalid Outcomes
	)
	for _, rec := range ev.Records {
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		ref := domain.ObjectRef{Bucket: rec.S3.Bucket.Name, Key: rec.S3.Object.Key}

		key, err := DecodeKey(rec.S3.Object.Key)
		if err != nil {
			invalid = append(invalid, Outcome{Ref: ref, Err: err})
			continue
		}
		ref.Key = key
		refs = append(refs, ref)
	}
	return refs, invalid
}
