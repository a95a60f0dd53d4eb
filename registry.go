// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"sort"
	"strings"
	"sync"
)

// Constructor wraps a freshly allocated base object in its specialized proxy.
//
// Constructors run before the object is bound to a remote handle and must
// not perform remote calls. Remote work belongs in the creation and adoption
// hooks.
type Constructor func(*Object) Proxy

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register maps a remote object type name to a constructor.
//
// Type names are case-insensitive. Registering a name twice replaces the
// previous constructor.
func Register(typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(typeName)] = ctor
}

// Resolve returns the constructor for a type name, falling back to the
// generic proxy for unknown types.
func Resolve(typeName string) Constructor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if ctor, ok := registry[strings.ToLower(typeName)]; ok {
		return ctor
	}
	return newGeneric
}

// RegisteredTypes returns the sorted list of type names with a specialized proxy
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// newGeneric is the constructor for types without a specialization
func newGeneric(o *Object) Proxy {
	return o
}

func init() {
	Register("project", newProject)
	Register("port", newPort)
	Register("generator", newGenerator)
	Register("analyzer", newGeneric)
	Register("emulateddevice", newDevice)
	Register("streamblock", newStreamBlock)
	Register("groupcollection", newGroupCollection)
	Register("trafficgroup", newTrafficGroup)
	Register("ipv4group", newIPGroup)
	Register("ipv6group", newIPGroup)
	Register("resultdataset", newResultView)
	Register("dynamicresultview", newResultView)

	for _, t := range []string{
		"bgprouterconfig", "ospfv2routerconfig", "ospfv3routerconfig",
		"isisrouterconfig", "pimrouterconfig", "bfdrouterconfig",
		"rsvprouterconfig", "ldprouterconfig",
	} {
		Register(t, emulationConstructor(ListRouters))
	}
	for _, t := range []string{
		"igmphostconfig", "igmprouterconfig", "mldhostconfig",
		"dhcpv4blockconfig", "dhcpv6blockconfig",
	} {
		Register(t, emulationConstructor(ListBlocks))
	}
	for _, t := range []string{"dhcpv4serverconfig", "dhcpv6serverconfig"} {
		Register(t, emulationConstructor(ListServers))
	}
	Register("oseswitchconfig", emulationConstructor(ListHandles))

	for _, t := range []string{
		"bgpipv4routeconfig", "bgpipv6routeconfig",
		"routerlsa", "summarylsablock", "externallsablock",
		"ospfv3asexternallsablock", "ospfv3interareaprefixlsablk",
		"ospfv3intraareaprefixlsablk", "ospfv3naaslsablock",
		"ipv4isisroutesconfig", "ipv6isisroutesconfig",
		"bfdipv4controlplaneindependentsession", "bfdipv6controlplaneindependentsession",
		"ipv4prefixlsp", "mldgroupmembership",
	} {
		Register(t, networkBlockConstructor(""))
	}
	Register("rsvpingresstunnelparams", networkBlockConstructor(""))
	Register("rsvpegresstunnelparams", networkBlockConstructor(""))
	Register("pimv4groupblk", networkBlockConstructor("JoinedGroup-targets"))
	Register("igmpgroupmembership", networkBlockConstructor("SubscribedGroups-targets"))
}
