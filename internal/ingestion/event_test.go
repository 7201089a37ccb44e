package ingestion

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sheetload/internal/errors"
	"sheetload/pkg/contracts/domain"
)

const s3EventJSON = `{
  "Records": [
    {
      "eventSource": "aws:s3",
      "eventName": "ObjectCreated:Put",
      "s3": {"bucket": {"name": "uploads"}, "object": {"key": "conversion/Feb+2020.xlsx", "size": 1024}}
    },
    {
      "eventSource": "aws:s3",
      "eventName": "ObjectRemoved:Delete",
      "s3": {"bucket": {"name": "uploads"}, "object": {"key": "conversion/old.xlsx"}}
    },
    {
      "eventSource": "aws:s3",
      "eventName": "ObjectCreated:Copy",
      "s3": {"bucket": {"name": "uploads"}, "object": {"key": "uk/daily.xlsx"}}
    }
  ]
}`

func TestRefsFromS3Event(t *testing.T) {
	var ev events.S3Event
	require.NoError(t, json.Unmarshal([]byte(s3EventJSON), &ev))

	bad := events.S3EventRecord{EventName: "ObjectCreated:CompleteMultipartUpload"}
	bad.S3.Bucket.Name = "uploads"
	bad.S3.Object.Key = "bad/%zz.xlsx"
	ev.Records = []events.S3EventRecord{ev.Records[0], ev.Records[1], bad, ev.Records[2]}

	refs, invalid := RefsFromS3Event(ev)

	assert.Equal(t, []domain.ObjectRef{
		{Bucket: "uploads", Key: "conversion/Feb 2020.xlsx"},
		{Bucket: "uploads", Key: "uk/daily.xlsx"},
	}, refs)

	require.Len(t, invalid, 1)
	assert.Equal(t, "bad/%zz.xlsx", invalid[0].Ref.Key)
	assert.ErrorIs(t, invalid[0].Err, apperrors.ErrMalformedKey)
}

func TestRefsFromS3Event_Empty(t *testing.T) {
	refs, invalid := RefsFromS3Event(events.S3Event{})
	assert.Empty(t, refs)
	assert.Empty(t, invalid)
}
