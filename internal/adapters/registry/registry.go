// Package registry maps provider names to adapter constructors.
package registry

import (
	"sort"
	"strings"

	"revattest/internal/adapters"
	"revattest/internal/adapters/bigcommerce"
	"revattest/internal/adapters/plaid"
	"revattest/internal/adapters/shopify"
	"revattest/internal/adapters/square"
	"revattest/internal/adapters/stripe"
	"revattest/internal/adapters/toast"
	"revattest/internal/adapters/woocommerce"
	apperrors "revattest/internal/errors"
	"revattest/internal/models"
)

// Constructor builds an adapter from transport options.
type Constructor func(adapters.Options) adapters.Adapter

var constructors = map[string]Constructor{
	models.ProviderStripe:      func(o adapters.Options) adapters.Adapter { return stripe.New(o) },
	models.ProviderShopify:     func(o adapters.Options) adapters.Adapter { return shopify.New(o) },
	models.ProviderWooCommerce: func(o adapters.Options) adapters.Adapter { return woocommerce.New(o) },
	models.ProviderPlaid:       func(o adapters.Options) adapters.Adapter { return plaid.New(o) },
	models.ProviderSquare:      func(o adapters.Options) adapters.Adapter { return square.New(o) },
	models.ProviderToast:       func(o adapters.Options) adapters.Adapter { return toast.New(o) },
	models.ProviderBigCommerce: func(o adapters.Options) adapters.Adapter { return bigcommerce.New(o) },
}

// New returns the adapter registered under name.
func New(name string, opts adapters.Options) (adapters.Adapter, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrUnknownProvider, "%q", name)
	}
	return ctor(opts), nil
}

// Names lists registered providers in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
