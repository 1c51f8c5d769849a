// Package blob stores video files behind a small driver interface.
// Production deployments use the s3 driver (AWS S3 or MinIO) with
// presigned download links; the fs and memory drivers serve development
// and tests, minting HMAC-signed links resolved by the daemon itself.
package blob
