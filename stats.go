// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"strings"
)

// viewConfigTypes maps result views to the configuration object types they
// report on by default
var viewConfigTypes = map[string]string{
	"analyzerportresults":        "Analyzer",
	"arpndresults":               "Port",
	"bfdrouterresults":           "BfdRouterConfig",
	"bfdsessionresults":          "BfdRouterConfig",
	"bgprouterresults":           "BgpRouterConfig",
	"dhcpv4blockresults":         "Dhcpv4BlockConfig",
	"dhcpv4portresults":          "Dhcpv4PortConfig",
	"dhcpv4serverresults":        "Dhcpv4ServerConfig",
	"dhcpv4sessionresults":       "Dhcpv4BlockConfig",
	"dhcpv6blockresults":         "Dhcpv6PdBlockConfig Dhcpv6BlockConfig",
	"dhcpv6portresults":          "Dhcpv6PortConfig",
	"dhcpv6sessionresults":       "Dhcpv6PdBlockConfig Dhcpv6BlockConfig",
	"diffservresults":            "Analyzer",
	"filteredstreamresults":      "Analyzer",
	"generatorportresults":       "Generator",
	"igmpgroupmembershipresults": "IgmpGroupMembership",
	"igmphostresults":            "IgmpHostConfig",
	"igmpportresults":            "IgmpPortConfig",
	"igmprouterresults":          "IgmpRouterConfig",
	"isisrouterresults":          "IsisRouterConfig",
	"ldplspresults":              "LdpRouterConfig",
	"ldprouterresults":           "LdpRouterConfig",
	"mldgroupmembershipresults":  "MldGroupMembership",
	"mldhostresults":             "MldHostConfig",
	"mldportresults":             "MldPortConfig",
	"mldrouterresults":           "MldRouterConfig",
	"ospfv2routerresults":        "Ospfv2RouterConfig",
	"ospfv3routerresults":        "Ospfv3RouterConfig",
	"overflowresults":            "Analyzer",
	"pimrouterresults":           "PimRouterConfig",
	"portavglatencyresults":      "Analyzer",
	"pppoesessionresults":        "PppoeClientBlockConfig PppoeServerBlockConfig",
	"riprouterresults":           "RipRouterConfig",
	"rsvplspresults":             "RsvpRouterConfig",
	"rsvprouterresults":          "RsvpRouterConfig",
	"rxcpuportresults":           "Analyzer",
	"rxportpairresults":          "Port",
	"rxstreamblockresults":       "StreamBlock",
	"rxstreamresults":            "StreamBlock",
	"rxstreamsummaryresults":     "StreamBlock",
	"rxtrafficgroupresults":      "StreamBlock TrafficGroup",
	"txcpuportresults":           "Generator",
	"txportpairresults":          "Port",
	"txstreamblockresults":       "StreamBlock",
	"txstreamresults":            "StreamBlock",
	"txtrafficgroupresults":      "StreamBlock TrafficGroup",
}

// ViewConfigType returns the default configuration type of a result view.
// ok is false for views that are not result data set views (for example
// user-defined dynamic result views).
func ViewConfigType(view string) (configType string, ok bool) {
	configType, ok = viewConfigTypes[strings.ToLower(view)]
	return configType, ok
}

// ResultView is a subscribed statistics view: a result data set or a
// dynamic result view. Reading and pivoting the statistics is left to the
// caller; GetAttributes on the view's result objects returns raw counters.
type ResultView struct {
	*Object

	view string
}

func newResultView(o *Object) Proxy {
	return &ResultView{Object: o}
}

// View returns the lowercased view name the subscription was made for
func (r *ResultView) View() string {
	return r.view
}

// IsDynamic reports whether the view is a dynamic result view
func (r *ResultView) IsDynamic() bool {
	return r.objType == "dynamicresultview"
}

// Unsubscribe tears down the subscription. A result data set is removed by
// the server, so its proxy is detached.
func (r *ResultView) Unsubscribe(ctx context.Context) error {
	if err := r.checkBound(); err != nil {
		return err
	}
	if err := r.session.transport.Unsubscribe(ctx, r.handle); err != nil {
		return err
	}
	r.session.logger.Debug(ctx, "Statistics view unsubscribed",
		"handle", r.handle,
		"view", r.view)
	if !r.IsDynamic() {
		r.detach()
	}
	return nil
}
