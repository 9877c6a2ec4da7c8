package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/phantomlaunch/identity-server/internal/model"
)

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Wrapper to adapt *minio.Client to minioAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
func (w minioClientWrapper) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucketName, objectName, opts)
}

var _ model.KeyStore = (*KeyVault)(nil)

// KeyVault stores encrypted wallet key material as one JSON object per
// address in a MinIO bucket. Objects are written once and never removed;
// a merged phantom's key must stay recoverable.
type KeyVault struct {
	api    minioAPI
	bucket string
}

// keyObject is the persisted shape of one wallet's sealed key.
type keyObject struct {
	Address    string `json:"address"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	AuthTag    []byte `json:"auth_tag"`
}

// NewKeyVault creates a vault using a real *minio.Client instance.
func NewKeyVault(ctx context.Context, client *minio.Client, bucket string) (*KeyVault, error) {
	return NewKeyVaultWithAPI(ctx, minioClientWrapper{c: client}, bucket)
}

// NewKeyVaultWithAPI allows injecting a mockable API (used in tests).
func NewKeyVaultWithAPI(ctx context.Context, api minioAPI, bucket string) (*KeyVault, error) {
	v := &KeyVault{
		api:    api,
		bucket: bucket,
	}

	if err := v.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return v, nil
}

// ensureBucketExists creates the bucket if it doesn't exist
func (v *KeyVault) ensureBucketExists(ctx context.Context) error {
	exists, err := v.api.BucketExists(ctx, v.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = v.api.MakeBucket(ctx, v.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func objectName(address string) string {
	return "keys/" + address + ".json"
}

// Save uploads sealed key material for an address. A second write for the
// same address is refused; wallets are never re-keyed.
func (v *KeyVault) Save(ctx context.Context, material model.WalletKeyMaterial) error {
	name := objectName(material.Address)

	_, err := v.api.StatObject(ctx, v.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("key material already exists for address %s", material.Address)
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to stat key object: %w", err)
	}

	data, err := json.Marshal(keyObject{
		Address:    material.Address,
		Ciphertext: material.Ciphertext,
		Nonce:      material.Nonce,
		AuthTag:    material.AuthTag,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal key object: %w", err)
	}

	_, err = v.api.PutObject(ctx, v.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload key object: %w", err)
	}

	return nil
}

// Get downloads and decodes the sealed key material for an address.
func (v *KeyVault) Get(ctx context.Context, address string) (model.WalletKeyMaterial, error) {
	obj, err := v.api.GetObject(ctx, v.bucket, objectName(address), minio.GetObjectOptions{})
	if err != nil {
		return model.WalletKeyMaterial{}, fmt.Errorf("failed to get key object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return model.WalletKeyMaterial{}, model.ErrNotFound
		}
		return model.WalletKeyMaterial{}, fmt.Errorf("failed to read key object: %w", err)
	}

	var stored keyObject
	if err := json.Unmarshal(data, &stored); err != nil {
		return model.WalletKeyMaterial{}, fmt.Errorf("failed to decode key object: %w", err)
	}

	return model.WalletKeyMaterial{
		Address:    stored.Address,
		Ciphertext: stored.Ciphertext,
		Nonce:      stored.Nonce,
		AuthTag:    stored.AuthTag,
	}, nil
}
