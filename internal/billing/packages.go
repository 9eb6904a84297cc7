package billing

// CreditPackage defines a purchasable credit bundle. The catalog is static
// and read-only at runtime.
type CreditPackage struct {
	ID            string
	DisplayName   string
	Credits       int
	PriceCents    int64
	StripePriceID string // optional pre-created price; inline price data otherwise
	Active        bool
}

// Packages holds all purchasable packages keyed by package ID.
var Packages = map[string]*CreditPackage{
	"starter": {
		ID:          "starter",
		DisplayName: "Starter",
		Credits:     30,
		PriceCents:  900,
		Active:      true,
	},
	"pro": {
		ID:          "pro",
		DisplayName: "Pro",
		Credits:     100,
		PriceCents:  1900,
		Active:      true,
	},
	"ultimate": {
		ID:          "ultimate",
		DisplayName: "Ultimate",
		Credits:     250,
		PriceCents:  3900,
		Active:      true,
	},
}

// PackageOrder defines the display ordering of packages.
var PackageOrder = []string{"starter", "pro", "ultimate"}

// GetPackage returns a package by its ID.
func GetPackage(id string) *CreditPackage {
	return Packages[id]
}
