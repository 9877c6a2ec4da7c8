package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomlaunch/identity-server/internal/model"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error

	putInfo minioLib.UploadInfo
	putErr  error
	putData []byte

	getRC  io.ReadCloser
	getErr error

	statInfo minioLib.ObjectInfo
	statErr  error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}
func (f *fakeMinio) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	return f.makeBucketErr
}
func (f *fakeMinio) PutObject(_ context.Context, _ string, _ string, reader io.Reader, _ int64, _ minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr == nil {
		f.putData, _ = io.ReadAll(reader)
	}
	return f.putInfo, f.putErr
}
func (f *fakeMinio) GetObject(_ context.Context, _ string, _ string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	return f.getRC, f.getErr
}
func (f *fakeMinio) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return f.statInfo, f.statErr
}

func TestNewKeyVaultWithAPI_BucketExists(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: true}
	v, err := NewKeyVaultWithAPI(ctx, api, "b")
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Equal(t, "b", v.bucket)
}

func TestNewKeyVaultWithAPI_CreateBucket(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: false}
	v, err := NewKeyVaultWithAPI(ctx, api, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "bucket", v.bucket)
}

func TestNewKeyVaultWithAPI_BucketExistsError(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExistsErr: errors.New("boom")}
	v, err := NewKeyVaultWithAPI(ctx, api, "bucket")
	assert.Nil(t, v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestNewKeyVaultWithAPI_MakeBucketError(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: false, makeBucketErr: errors.New("fail")}
	v, err := NewKeyVaultWithAPI(ctx, api, "bucket")
	assert.Nil(t, v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestKeyVault_Save(t *testing.T) {
	ctx := context.Background()
	material := model.WalletKeyMaterial{
		Address:    "0xAbC",
		Ciphertext: []byte("ct"),
		Nonce:      []byte("nonce"),
		AuthTag:    []byte("tag"),
	}

	t.Run("success", func(t *testing.T) {
		api := &fakeMinio{statErr: minioLib.ErrorResponse{Code: "NoSuchKey"}}
		v := &KeyVault{api: api, bucket: "b"}
		err := v.Save(ctx, material)
		require.NoError(t, err)

		var stored keyObject
		require.NoError(t, json.Unmarshal(api.putData, &stored))
		assert.Equal(t, material.Address, stored.Address)
		assert.Equal(t, material.Ciphertext, stored.Ciphertext)
		assert.Equal(t, material.Nonce, stored.Nonce)
		assert.Equal(t, material.AuthTag, stored.AuthTag)
	})

	t.Run("duplicate address refused", func(t *testing.T) {
		api := &fakeMinio{}
		v := &KeyVault{api: api, bucket: "b"}
		err := v.Save(ctx, material)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
		assert.Nil(t, api.putData)
	})

	t.Run("stat error", func(t *testing.T) {
		api := &fakeMinio{statErr: errors.New("stat-fail")}
		v := &KeyVault{api: api, bucket: "b"}
		err := v.Save(ctx, material)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to stat key object")
	})

	t.Run("upload error", func(t *testing.T) {
		api := &fakeMinio{statErr: minioLib.ErrorResponse{Code: "NoSuchKey"}, putErr: errors.New("put-fail")}
		v := &KeyVault{api: api, bucket: "b"}
		err := v.Save(ctx, material)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload key object")
	})
}

func TestKeyVault_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		data, err := json.Marshal(keyObject{
			Address:    "0xAbC",
			Ciphertext: []byte("ct"),
			Nonce:      []byte("nonce"),
			AuthTag:    []byte("tag"),
		})
		require.NoError(t, err)

		api := &fakeMinio{getRC: io.NopCloser(bytes.NewReader(data))}
		v := &KeyVault{api: api, bucket: "b"}
		material, err := v.Get(ctx, "0xAbC")
		require.NoError(t, err)
		assert.Equal(t, "0xAbC", material.Address)
		assert.Equal(t, []byte("ct"), material.Ciphertext)
		assert.Equal(t, []byte("nonce"), material.Nonce)
		assert.Equal(t, []byte("tag"), material.AuthTag)
	})

	t.Run("error", func(t *testing.T) {
		api := &fakeMinio{getErr: errors.New("get-fail")}
		v := &KeyVault{api: api, bucket: "b"}
		_, err := v.Get(ctx, "0xAbC")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get key object")
	})

	t.Run("garbage object", func(t *testing.T) {
		api := &fakeMinio{getRC: io.NopCloser(bytes.NewReader([]byte("not-json")))}
		v := &KeyVault{api: api, bucket: "b"}
		_, err := v.Get(ctx, "0xAbC")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode key object")
	})
}
