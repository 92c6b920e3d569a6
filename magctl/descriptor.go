package magctl

import "net/url"

// Descriptor is the per-target information the data plane needs once
// Dispatch has named a slot: the collaborator-owned table mentioned in
// the specification's external-interfaces section, keyed by slot
// index so it stays stable across pool churn.
type Descriptor struct {
	Name string
	Url  url.URL
}
