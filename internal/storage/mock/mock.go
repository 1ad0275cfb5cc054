package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Uploader implements a mock image uploader that records uploaded keys
type Uploader struct {
	// Fail makes every call return an error
	Fail bool

	mutex sync.Mutex
	keys  []string
}

// Upload records the key and returns a fake URL
func (u *Uploader) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if u.Fail {
		return "", errors.New("mock upload error")
	}

	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.keys = append(u.keys, key)

	return fmt.Sprintf("https://storage.example.com/bucket/%s", key), nil
}

// Check verifies nothing
func (u *Uploader) Check(ctx context.Context) error {
	if u.Fail {
		return errors.New("mock check error")
	}

	return nil
}

// Keys returns the keys uploaded so far
func (u *Uploader) Keys() []string {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	keys := make([]string, len(u.keys))
	copy(keys, u.keys)
	return keys
}
