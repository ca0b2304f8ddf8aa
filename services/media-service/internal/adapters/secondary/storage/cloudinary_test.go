package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

type fakeAPI struct {
	uploadParams  uploader.UploadParams
	destroyParams uploader.DestroyParams
	destroy       *uploader.DestroyResult
	err           error
}

func (f *fakeAPI) Upload(_ context.Context, _ interface{}, p uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploadParams = p
	if f.err != nil {
		return nil, f.err
	}
	return &uploader.UploadResult{PublicID: "posts/abc", ResourceType: "video", SecureURL: "https://res.cloudinary.com/x/posts/abc"}, nil
}

func (f *fakeAPI) Destroy(_ context.Context, p uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyParams = p
	if f.err != nil {
		return nil, f.err
	}
	return f.destroy, nil
}

func TestUpload_AutoResourceType(t *testing.T) {
	fake := &fakeAPI{}
	s := &CloudinaryStorage{api: fake, folder: "posts"}

	blob, err := s.Upload(context.Background(), "clip.mp4", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "auto", fake.uploadParams.ResourceType)
	assert.Equal(t, "posts", fake.uploadParams.Folder)
	assert.Equal(t, domain.StoredBlob{PublicID: "posts/abc", ResourceType: "video", URL: "https://res.cloudinary.com/x/posts/abc"}, blob)
}

func TestDelete_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		result  *uploader.DestroyResult
		err     error
		want    domain.BlobOutcome
		wantErr bool
	}{
		{name: "deleted", result: &uploader.DestroyResult{Result: "ok"}, want: domain.BlobDeleted},
		{name: "absent", result: &uploader.DestroyResult{Result: "not found"}, want: domain.BlobAbsent},
		{name: "api error", result: &uploader.DestroyResult{Error: api.ErrorResp{Message: "rate limited"}}, wantErr: true},
		{name: "transport error", err: errors.New("timeout"), wantErr: true},
		{name: "unexpected", result: &uploader.DestroyResult{Result: "pending"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{destroy: tt.result, err: tt.err}
			s := &CloudinaryStorage{api: fake}

			got, err := s.Delete(context.Background(), "posts/abc", "")
			assert.Equal(t, "image", fake.destroyParams.ResourceType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
