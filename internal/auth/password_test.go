// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheap = Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8}

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(cheap)

	encoded, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$"))

	ok, err := h.Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Correct horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewHasher(cheap)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHasher_VerifyUsesParamsFromHash(t *testing.T) {
	encoded, err := NewHasher(cheap).Hash("pw")
	require.NoError(t, err)

	ok, err := NewHasher(DefaultParams).Verify("pw", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_VerifyInvalidHash(t *testing.T) {
	h := NewHasher(cheap)

	tests := []string{
		"",
		"-1203021",
		"$bcrypt$v=19$m=64,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=64,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$bogus$c2FsdA$a2V5",
		"$argon2id$v=19$m=64,t=1,p=1$!!!$a2V5",
	}

	for _, encoded := range tests {
		t.Run(encoded, func(t *testing.T) {
			ok, err := h.Verify("pw", encoded)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}
