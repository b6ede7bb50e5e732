package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// APIModule mounts routes under /api/v1. public needs no token; authed
// requires a valid access token.
type APIModule interface {
	MountAPI(public, authed *gin.RouterGroup)
}

// AdminModule mounts routes on an admin-guarded group.
type AdminModule interface {
	MountAdmin(admin *gin.RouterGroup)
}

// Modules can implement Priority to control mount order (lower first, 100
// by default).
type prioritizer interface{ Priority() int }

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}

func mountAPI(public, authed *gin.RouterGroup, mods []APIModule) {
	mods = append([]APIModule(nil), mods...)
	sort.SliceStable(mods, func(i, j int) bool { return priorityOf(mods[i]) < priorityOf(mods[j]) })
	for _, m := range mods {
		m.MountAPI(public, authed)
	}
}

func mountAdmin(admin *gin.RouterGroup, mods []AdminModule) {
	mods = append([]AdminModule(nil), mods...)
	sort.SliceStable(mods, func(i, j int) bool { return priorityOf(mods[i]) < priorityOf(mods[j]) })
	for _, m := range mods {
		m.MountAdmin(admin)
	}
}
