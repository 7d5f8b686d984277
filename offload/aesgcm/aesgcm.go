// Package aesgcm implements the AES-GCM offload context (spec §4.H),
// grounded on original_source/doca/aes_gcm.hpp's aes_gcm_key/
// aes_gcm_context pair. The simulated hardware path uses the standard
// library's crypto/aes and crypto/cipher: no example repo in this pack
// carries a third-party AEAD implementation, and crypto/cipher.NewGCM is
// the canonical Go construction of exactly this primitive, so there is
// no suitable library to prefer over it (see DESIGN.md).
package aesgcm

import (
	"context"
	"crypto/aes"
	"crypto/cipher"

	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload"
)

// Key is the Go analogue of aes_gcm_key: an opaque handle the SDK would
// load into hardware; here it just validates and stores key bytes.
type Key struct {
	raw []byte
}

// NewKey validates key as an AES key (16/24/32 bytes) and wraps it.
func NewKey(raw []byte) (*Key, error) {
	if _, err := aes.NewCipher(raw); err != nil {
		return nil, err
	}
	return &Key{raw: raw}, nil
}

// Context is the Go analogue of doca::aes_gcm_context.
type Context struct {
	*dcontext.Base
}

// New constructs an AES-GCM context.
func New(parent dcontext.Parent, eng *engine.Engine) *Context {
	c := &Context{}
	c.Base = dcontext.NewBase("aesgcm", parent, eng, dcontext.SDKHooks{})
	return c
}

// Encrypt seals plaintext into dest using key, iv (the nonce), and tagSize
// (appended after the ciphertext, matching the source's combined
// ciphertext+tag buffer layout). aad is additional authenticated data.
func (c *Context) Encrypt(ctx context.Context, plaintext, dest *devsim.Buffer, key *Key, iv []byte, tagSize int, aad []byte) error {
	return c.run(ctx, func() error {
		block, err := aes.NewCipher(key.raw)
		if err != nil {
			return err
		}
		gcm, err := cipher.NewGCMWithTagSize(block, tagSize)
		if err != nil {
			return err
		}
		sealed := gcm.Seal(nil, iv, plaintext.Data(), aad)
		if _, _, err := dest.SetData(0, len(sealed)); err != nil {
			return err
		}
		copy(dest.Data(), sealed)
		return nil
	})
}

// Decrypt opens encrypted (ciphertext+tag) into dest.
func (c *Context) Decrypt(ctx context.Context, encrypted, dest *devsim.Buffer, key *Key, iv []byte, tagSize int, aad []byte) error {
	return c.run(ctx, func() error {
		block, err := aes.NewCipher(key.raw)
		if err != nil {
			return err
		}
		gcm, err := cipher.NewGCMWithTagSize(block, tagSize)
		if err != nil {
			return err
		}
		plain, err := gcm.Open(nil, iv, encrypted.Data(), aad)
		if err != nil {
			return err
		}
		if _, _, err := dest.SetData(0, len(plain)); err != nil {
			return err
		}
		copy(dest.Data(), plain)
		return nil
	})
}

func (c *Context) run(ctx context.Context, work func() error) error {
	v, err := offload.Submit[struct{}](ctx, c.Engine(), func(userData uintptr) error {
		r := offload.UserDataToReceptacle[struct{}](userData)
		go func() {
			offload.Complete(r, nil, struct{}{}, work())
		}()
		return nil
	})
	if err != nil {
		return err
	}
	_, err = v.Await(ctx)
	return err
}
