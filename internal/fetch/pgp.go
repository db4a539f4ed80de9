package fetch

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/recipe"
)

const (
	maxKeySize       = 100 * 1024
	maxSignatureSize = 10 * 1024
	pgpFetchTimeout  = 30 * time.Second
)

// verifyPGP is the additive check SPEC_FULL.md layers on top of the sha256
// digest: a detached signature over the exact bytes just written to path,
// verified against a key pinned by fingerprint. Keys are cached under
// {cache_path}/keys/{fingerprint}.asc so a recipe's signer key is fetched
// once regardless of how many artifacts it signs.
func verifyPGP(ctx context.Context, client *http.Client, path string, v recipe.PGPVerification, settings *hobpath.Settings) error {
	fingerprint := strings.ToUpper(strings.ReplaceAll(v.KeyFingerprint, " ", ""))
	if _, err := hex.DecodeString(fingerprint); err != nil || len(fingerprint) != 40 {
		return fmt.Errorf("fetch: pgp key_fingerprint must be 40 hex characters: %q", v.KeyFingerprint)
	}

	key, err := fetchKey(ctx, client, settings, v.KeyURL, fingerprint)
	if err != nil {
		return fmt.Errorf("fetch: pgp key: %w", err)
	}

	sigData, err := fetchCapped(ctx, client, v.SignatureURL, maxSignatureSize)
	if err != nil {
		return fmt.Errorf("fetch: pgp signature: %w", err)
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fetch: reading %s for pgp verification: %w", path, err)
	}

	sig, err := crypto.NewPGPSignatureFromArmored(string(sigData))
	if err != nil {
		sig = crypto.NewPGPSignature(sigData)
	}
	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return fmt.Errorf("fetch: building pgp keyring: %w", err)
	}
	if err := keyRing.VerifyDetached(crypto.NewPlainMessage(fileData), sig, 0); err != nil {
		return fmt.Errorf("fetch: pgp signature verification failed: %w", err)
	}
	return nil
}

func fetchKey(ctx context.Context, client *http.Client, settings *hobpath.Settings, keyURL, fingerprint string) (*crypto.Key, error) {
	keyDir := filepath.Join(settings.CachePath, "keys")
	keyPath := filepath.Join(keyDir, fingerprint+".asc")

	if data, err := os.ReadFile(keyPath); err == nil {
		if key, err := crypto.NewKeyFromArmored(string(data)); err == nil {
			if strings.ToUpper(key.GetFingerprint()) == fingerprint {
				return key, nil
			}
		}
		os.Remove(keyPath)
	}

	data, err := fetchCapped(ctx, client, keyURL, maxKeySize)
	if err != nil {
		return nil, err
	}
	key, err := crypto.NewKeyFromArmored(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	if got := strings.ToUpper(key.GetFingerprint()); got != fingerprint {
		return nil, fmt.Errorf("key fingerprint mismatch: expected %s, got %s", fingerprint, got)
	}

	if err := os.MkdirAll(keyDir, 0o700); err == nil {
		os.WriteFile(keyPath, data, 0o600)
	}
	return key, nil
}

func fetchCapped(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, pgpFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds maximum size of %d bytes", url, limit)
	}
	return data, nil
}
