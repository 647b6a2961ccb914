package eventqueue

import (
	"sort"

	"github.com/neopult/neopult/scripting"
)

// SystemInfo mirrors spec §6's wire-format snapshot of every plugin
// instance's modules and actions.
type SystemInfo struct {
	PluginInstances []PluginInstanceInfo `json:"plugin_instances"`
}

type PluginInstanceInfo struct {
	Name    string       `json:"name"`
	Modules []ModuleInfo `json:"modules"`
}

type ModuleInfo struct {
	Name          string       `json:"name"`
	DisplayName   string       `json:"display_name,omitempty"`
	Actions       []ActionInfo `json:"actions"`
	ActiveActions []string     `json:"active_actions"`
	Status        *string      `json:"status,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

type ActionInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// BuildSystemInfo snapshots the registry's full plugin-instance/module/
// action tree. Registry.Instances already returns a sorted slice; module
// and action names are sorted here for the same determinism.
func BuildSystemInfo(r *scripting.Registry) SystemInfo {
	var info SystemInfo
	for _, inst := range r.Instances() {
		pi := PluginInstanceInfo{Name: inst.PluginName}
		for _, name := range sortedKeys(inst.Modules) {
			m := inst.Modules[name]
			mi := ModuleInfo{
				Name:          m.Name,
				DisplayName:   m.DisplayName,
				ActiveActions: append([]string(nil), m.ActiveActions...),
			}
			if m.Status != "" {
				status := m.Status
				mi.Status = &status
			}
			if m.Message != "" {
				message := m.Message
				mi.Message = &message
			}
			for _, actionName := range sortedActionKeys(m.Actions) {
				a := m.Actions[actionName]
				mi.Actions = append(mi.Actions, ActionInfo{Name: a.Name, DisplayName: a.DisplayName})
			}
			pi.Modules = append(pi.Modules, mi)
		}
		info.PluginInstances = append(info.PluginInstances, pi)
	}
	return info
}

func sortedKeys(m map[string]*scripting.Module) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedActionKeys(m map[string]*scripting.Action) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
