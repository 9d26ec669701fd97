package s3

import (
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

func testStorage(usePathStyle bool) *SnapshotStorage {
	return &SnapshotStorage{config: Config{
		Bucket:       "qa-archive",
		Endpoint:     "https://storage.yandexcloud.net",
		UsePathStyle: usePathStyle,
		URLMode:      URLModePublic,
	}}
}

func TestSnapshotStoragePublicURL(t *testing.T) {
	tests := []struct {
		name         string
		usePathStyle bool
		want         string
	}{
		{
			name:         "path style",
			usePathStyle: true,
			want:         "https://storage.yandexcloud.net/qa-archive/quickset/QS_1/2025/01/10/snap%20shot.json",
		},
		{
			name: "virtual host",
			want: "https://qa-archive.storage.yandexcloud.net/quickset/QS_1/2025/01/10/snap%20shot.json",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, testStorage(tc.usePathStyle).publicURL("quickset/QS_1/2025/01/10/snap shot.json"))
		})
	}
}

func TestSnapshotStoragePutInputCarriesSessionMetadata(t *testing.T) {
	archivedAt := time.Date(2025, 1, 10, 10, 5, 0, 0, time.FixedZone("MSK", 3*60*60))
	body := []byte(`{"session":{"session_id":"QS_1"}}`)

	input, err := testStorage(false).putInput(port.SnapshotObject{
		Key:           " quickset/QS_1/2025/01/10/20250110T070500Z_ab12cd34.json ",
		SessionID:     "QS_1",
		ScenarioName:  "TV_AUTO_SYNC",
		OverallStatus: "FAIL",
		ArchivedAt:    archivedAt,
		Body:          body,
	})
	require.NoError(t, err)

	assert.Equal(t, "qa-archive", aws.ToString(input.Bucket))
	assert.Equal(t, "quickset/QS_1/2025/01/10/20250110T070500Z_ab12cd34.json", aws.ToString(input.Key))
	assert.Equal(t, "application/json", aws.ToString(input.ContentType))
	assert.Equal(t, int64(len(body)), aws.ToInt64(input.ContentLength))
	assert.Equal(t, `inline; filename="20250110T070500Z_ab12cd34.json"`, aws.ToString(input.ContentDisposition))
	assert.Equal(t, map[string]string{
		"session_id":     "QS_1",
		"scenario_name":  "TV_AUTO_SYNC",
		"overall_status": "FAIL",
		"archived_at":    "2025-01-10T07:05:00Z",
	}, input.Metadata)

	uploaded, err := io.ReadAll(input.Body)
	require.NoError(t, err)
	assert.Equal(t, body, uploaded)
}

func TestSnapshotStoragePutInputOmitsEmptyAttributes(t *testing.T) {
	input, err := testStorage(true).putInput(port.SnapshotObject{
		Key:       "snapshots/QS_2.json",
		SessionID: "QS_2\nforged: yes",
		Body:      []byte(`{}`),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"session_id": "QS_2_forged: yes"}, input.Metadata)
}

func TestSnapshotStoragePutInputValidation(t *testing.T) {
	tests := []struct {
		name   string
		object port.SnapshotObject
	}{
		{"missing key", port.SnapshotObject{SessionID: "QS_1", Body: []byte(`{}`)}},
		{"missing session", port.SnapshotObject{Key: "a.json", Body: []byte(`{}`)}},
		{"empty body", port.SnapshotObject{Key: "a.json", SessionID: "QS_1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testStorage(false).putInput(tc.object)
			assert.Error(t, err)
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg, err := Config{Bucket: " qa-archive ", AccessKeyID: "id", SecretAccessKey: "secret", Endpoint: "http://minio:9000/"}.normalize()
	require.NoError(t, err)

	assert.Equal(t, "qa-archive", cfg.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Endpoint)
	assert.Equal(t, "ru-central1", cfg.Region)
	assert.Equal(t, URLModePresigned, cfg.URLMode)
	assert.Equal(t, time.Hour, cfg.PresignedTTL)

	_, err = Config{AccessKeyID: "id", SecretAccessKey: "secret"}.normalize()
	assert.Error(t, err)

	_, err = Config{Bucket: "b", AccessKeyID: "id"}.normalize()
	assert.Error(t, err)

	_, err = Config{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret", URLMode: "cdn"}.normalize()
	assert.Error(t, err)
}

func TestPublicURLKeepsEndpointSchemeForPathStyle(t *testing.T) {
	storage := &SnapshotStorage{config: Config{
		Bucket:       "qa-archive",
		Endpoint:     "http://minio:9000",
		UsePathStyle: true,
	}}
	assert.Equal(t, "http://minio:9000/qa-archive/snapshots/QS_1.json", storage.publicURL("snapshots/QS_1.json"))
}
