// Package hook runs a user-supplied Lua accept callback over mapped events.
//
// The script must define a global function accept(events). events is an
// array of tables with the fields id, title, start, location, description,
// color and textColor. Returning an array replaces the events; returning nil
// keeps them. Fields left out of a returned entry are taken from the input
// event with the same id.
package hook

import (
	"fmt"
	"log"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/harrisonrobin/taskcal/pkg/model"
)

const acceptFunc = "accept"

// LuaAccept holds a loaded script. It is safe for concurrent use.
type LuaAccept struct {
	mu   sync.Mutex
	L    *lua.LState
	name string
}

// LoadFile loads the script at path.
func LoadFile(path string) (*LuaAccept, error) {
	L := newState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load accept script %s: %w", path, err)
	}
	return newLuaAccept(L, path)
}

// LoadString loads script source held in memory. name is used in log output.
func LoadString(name, src string) (*LuaAccept, error) {
	L := newState()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load accept script %s: %w", name, err)
	}
	return newLuaAccept(L, name)
}

// newState opens only the base, table, string and math libraries. The file
// loaders from base are removed so a script cannot reach the filesystem.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func newLuaAccept(L *lua.LState, name string) (*LuaAccept, error) {
	if _, ok := L.GetGlobal(acceptFunc).(*lua.LFunction); !ok {
		L.Close()
		return nil, fmt.Errorf("accept script %s does not define function %s(events)", name, acceptFunc)
	}
	return &LuaAccept{L: L, name: name}, nil
}

// Close releases the Lua state.
func (a *LuaAccept) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.L.Close()
}

// Accept calls the script. Script errors are logged and yield nil so the
// caller keeps its own events.
func (a *LuaAccept) Accept(events []model.CalendarEvent) []model.CalendarEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	out, err := a.call(events)
	if err != nil {
		log.Printf("Warning: accept script %s failed, keeping mapped events: %v", a.name, err)
		return nil
	}
	return out
}

func (a *LuaAccept) call(events []model.CalendarEvent) ([]model.CalendarEvent, error) {
	L := a.L
	arg := L.NewTable()
	byID := make(map[string]model.CalendarEvent, len(events))
	for _, ev := range events {
		arg.Append(eventToTable(L, ev))
		byID[ev.ID] = ev
	}

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(acceptFunc),
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)

	if ret == lua.LNil {
		return nil, nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s returned %s, want table or nil", acceptFunc, ret.Type())
	}

	out := make([]model.CalendarEvent, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a table", i)
		}
		ev, err := tableToEvent(entry, byID)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func eventToTable(L *lua.LState, ev model.CalendarEvent) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(ev.ID))
	t.RawSetString("title", lua.LString(ev.Title))
	t.RawSetString("start", lua.LString(model.FormatDate(ev.Start)))
	t.RawSetString("location", lua.LString(ev.Location))
	t.RawSetString("description", lua.LString(ev.Description))
	t.RawSetString("color", lua.LString(ev.Color))
	t.RawSetString("textColor", lua.LString(ev.TextColor))
	return t
}

func tableToEvent(t *lua.LTable, byID map[string]model.CalendarEvent) (model.CalendarEvent, error) {
	id, ok := t.RawGetString("id").(lua.LString)
	if !ok || id == "" {
		return model.CalendarEvent{}, fmt.Errorf("missing id")
	}
	ev, known := byID[string(id)]
	ev.ID = string(id)

	str := func(key string, dst *string) {
		if v, ok := t.RawGetString(key).(lua.LString); ok {
			*dst = string(v)
		}
	}
	str("title", &ev.Title)
	str("location", &ev.Location)
	str("description", &ev.Description)
	str("color", &ev.Color)
	str("textColor", &ev.TextColor)

	if v, ok := t.RawGetString("start").(lua.LString); ok {
		start, err := model.ParseDate(string(v))
		if err != nil {
			return model.CalendarEvent{}, err
		}
		ev.Start = start
	} else if !known {
		return model.CalendarEvent{}, fmt.Errorf("new event %s has no start", id)
	}
	return ev, nil
}
