package address

import (
	"strconv"
	"sync"
)

// Book is a session's saved addresses. It lives in memory only.
type Book struct {
	mu        sync.RWMutex
	addresses []Address
}

func NewBook() *Book {
	return &Book{addresses: []Address{}}
}

func (b *Book) List() []Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Address, len(b.addresses))
	copy(out, b.addresses)
	return out
}

// Add validates a, assigns the next sequential id and stores it. The first
// address saved becomes the default.
func (b *Book) Add(a Address) (Address, error) {
	if err := a.Validate(); err != nil {
		return Address{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a.ID = strconv.Itoa(len(b.addresses) + 1)
	a.IsDefault = len(b.addresses) == 0
	b.addresses = append(b.addresses, a)
	return a, nil
}

func (b *Book) Get(id string) (Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}
