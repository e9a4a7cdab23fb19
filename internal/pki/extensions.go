package pki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"hash/fnv"
	"strconv"
)

// Entitlement certificate extension arcs. 2312 is the Red Hat enterprise
// number; clients in the field read these positions, so the layout must not
// change.
var (
	oidProductBase = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 2312, 9, 1}
	oidOrderBase   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 2312, 9, 4}
)

// Order extension keys. Clients look values up by bare numeric key, so the
// key->field mapping lives in this one table and nowhere else.
const (
	orderKeyName     = 1
	orderKeyNumber   = 2
	orderKeySKU      = 3
	orderKeyRegnum   = 4
	orderKeyQuantity = 5
)

// Order is the per-grant order metadata encoded into the certificate.
type Order struct {
	Name     string
	Number   string
	SKU      string
	Regnum   string
	Quantity int64
}

// ProductEntry is one product's slot in the certificate.
type ProductEntry struct {
	ID   string
	Name string
}

// OrderExtensions encodes the order fields under their numeric keys.
func OrderExtensions(o Order) []pkix.Extension {
	entries := []struct {
		key   int
		value string
	}{
		{orderKeyName, o.Name},
		{orderKeyNumber, o.Number},
		{orderKeySKU, o.SKU},
		{orderKeyRegnum, o.Regnum},
		{orderKeyQuantity, strconv.FormatInt(o.Quantity, 10)},
	}

	exts := make([]pkix.Extension, 0, len(entries))
	for _, e := range entries {
		exts = append(exts, utf8Extension(childOID(oidOrderBase, e.key), e.value))
	}
	return exts
}

// ProductExtensions encodes each product's name under the product arc.
func ProductExtensions(products []ProductEntry) []pkix.Extension {
	exts := make([]pkix.Extension, 0, len(products))
	for _, p := range products {
		arc := childOID(oidProductBase, productOIDComponent(p.ID))
		exts = append(exts, utf8Extension(childOID(arc, 1), p.Name))
	}
	return exts
}

// productOIDComponent maps a product id to an OID component. Numeric ids are
// used directly; anything else is hashed so the component stays stable across
// issuances.
func productOIDComponent(id string) int {
	if n, err := strconv.Atoi(id); err == nil && n > 0 {
		return n
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() & 0x7fffffff)
}

func childOID(base asn1.ObjectIdentifier, component int) asn1.ObjectIdentifier {
	oid := make(asn1.ObjectIdentifier, len(base), len(base)+1)
	copy(oid, base)
	return append(oid, component)
}

func utf8Extension(oid asn1.ObjectIdentifier, value string) pkix.Extension {
	// Encoding failure is impossible for a plain string; keep the extension
	// present with an empty value rather than dropping the key.
	b, err := asn1.MarshalWithParams(value, "utf8")
	if err != nil {
		b = nil
	}
	return pkix.Extension{Id: oid, Value: b}
}

// ExtensionValue decodes a UTF8String extension payload.
func ExtensionValue(ext pkix.Extension) (string, error) {
	var s string
	if _, err := asn1.UnmarshalWithParams(ext.Value, &s, "utf8"); err != nil {
		return "", err
	}
	return s, nil
}
