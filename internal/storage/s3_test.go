package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	const base = "https://cdn.example.com/media"

	cases := []struct {
		name string
		url  string
		key  string
		ok   bool
	}{
		{"by base url", base + "/images/2024/a.png", "images/2024/a.png", true},
		{"base url with query", base + "/files/doc.pdf?sig=1", "files/doc.pdf", true},
		{"foreign host with known segment", "https://other.host/bucket/original/x_1.jpg", "", false},
		{"unknown prefix", base + "/avatars/a.png", "", false},
		{"traversal", base + "/images/../secret", "", false},
		{"bad chars", "https://h/images/a b.png", "", false},
		{"no segment", "https://h/other/a.png", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ObjectKey(tc.url, base)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.key, key)
		})
	}

	t.Run("segment fallback without base url", func(t *testing.T) {
		key, err := ObjectKey("https://other.host/bucket/original/x_1.jpg", "")
		require.NoError(t, err)
		assert.Equal(t, "original/x_1.jpg", key)
	})
}

type fakeS3 struct {
	keys []string
	err  error
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, aws.ToString(in.Bucket)+":"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Delete(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	s := newS3(fake, "chat-media", "https://cdn.example.com/")

	require.NoError(t, s.Delete(ctx, "https://cdn.example.com/images/a.png"))
	require.NoError(t, s.Delete(ctx, "https://elsewhere.org/pic.png"))
	require.NoError(t, s.Delete(ctx, "https://elsewhere.org/images/victim.png"))
	assert.Equal(t, []string{"chat-media:images/a.png"}, fake.keys)

	fake.err = errors.New("denied")
	assert.Error(t, s.Delete(ctx, "https://cdn.example.com/files/b.txt"))
}
