package dynamodb

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

func TestSnapshotItemRoundTrip(t *testing.T) {
	record := port.SnapshotMetadata{
		SessionID:     "QS_1",
		ScenarioName:  "TV_AUTO_SYNC",
		OverallStatus: "FAIL",
		S3Key:         "quickset/QS_1/2025/01/10/20250110T100400Z_ab12cd34.json",
		URL:           "https://storage.example.com/snap.json",
		SizeBytes:     2048,
		ArchivedAt:    time.Date(2025, 1, 10, 10, 4, 0, 0, time.UTC),
		ExpiresAt:     time.Date(2025, 2, 9, 10, 4, 0, 0, time.UTC),
	}

	item, err := toItem(record)
	require.NoError(t, err)

	pk, ok := item[attrPK].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "SESSION#QS_1", pk.Value)

	restored, err := fromItem(item)
	require.NoError(t, err)
	assert.Equal(t, record, restored)
}

func TestSnapshotItemValidation(t *testing.T) {
	_, err := toItem(port.SnapshotMetadata{SessionID: "bad id!", S3Key: "k"})
	assert.Error(t, err)

	_, err = toItem(port.SnapshotMetadata{SessionID: "QS_1"})
	assert.Error(t, err)
}

func TestCursorRoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: "SESSION#QS_1"},
		attrSK: &types.AttributeValueMemberS{Value: "TS#0001736503440000#KEY#abc"},
	}

	cursor, err := encodeCursor(key, "QS_1")
	require.NoError(t, err)

	decoded, err := decodeCursor(cursor, "QS_1")
	require.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = decodeCursor(cursor, "QS_2")
	assert.ErrorIs(t, err, port.ErrInvalidCursor)

	_, err = decodeCursor("%%%", "QS_1")
	assert.ErrorIs(t, err, port.ErrInvalidCursor)
}
