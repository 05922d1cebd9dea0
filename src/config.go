package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	XML configuration reader.
 *
 * Description: The configuration document describes the plugins and
 *		instances to load:
 *
 *		<Configuration name="...">
 *		  <Settings>
 *		    <Setting name="tick">10</Setting>
 *		  </Settings>
 *		  <Plugins>
 *		    <Plugin name="AX25" file="ax25v2_2">
 *		      <Settings> ... </Settings>
 *		      <Instances>
 *		        <Instance name="..."> <Settings/> </Instance>
 *		      </Instances>
 *		    </Plugin>
 *		  </Plugins>
 *		</Configuration>
 *
 *		Each plugin's setting descriptor table is populated by
 *		the configurator closure.  Unknown settings are
 *		ignored; missing mandatory settings fail the load.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/xml"
	"os"
	"strconv"
	"strings"
)

type xml_setting_t struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xml_settings_t struct {
	Settings []xml_setting_t `xml:"Setting"`
}

type xml_instance_t struct {
	Name     string         `xml:"name,attr"`
	Settings xml_settings_t `xml:"Settings"`
}

type xml_plugin_t struct {
	Name      string           `xml:"name,attr"`
	File      string           `xml:"file,attr"`
	Settings  xml_settings_t   `xml:"Settings"`
	Instances []xml_instance_t `xml:"Instances>Instance"`
}

type xml_configuration_t struct {
	XMLName  xml.Name       `xml:"Configuration"`
	Name     string         `xml:"name,attr"`
	Settings xml_settings_t `xml:"Settings"`
	Plugins  []xml_plugin_t `xml:"Plugins>Plugin"`
}

type settings_context_t struct {
	values map[string]string
}

func settings_map(xs *xml_settings_t) map[string]string {
	var m = make(map[string]string, len(xs.Settings))
	for _, s := range xs.Settings {
		m[s.Name] = strings.TrimSpace(s.Value)
	}
	return m
}

/*-------------------------------------------------------------------
 *
 * Name:	configurator
 *
 * Purpose:	Populate typed fields from a settings descriptor
 *		table and the parsed XML values.
 *
 *---------------------------------------------------------------*/

func configurator(handle any, descriptor []setting_descriptor_t, context any, ex *exception_t) bool {
	var ctx, ok = context.(*settings_context_t)
	if !ok {
		exception_fill(ex, EINVAL, "Config", "configurator",
			"Bad settings context", "")
		return false
	}

	for _, desc := range descriptor {
		var value, present = ctx.values[desc.name]
		if !present {
			if desc.required {
				exception_fill(ex, EINVAL, "Config", "configurator",
					"Missing mandatory setting", desc.name)
				return false
			}
			value = desc.def
		}
		if value == "-" {
			continue
		}
		if !apply_setting(&desc, value, ex) {
			return false
		}
	}
	_ = handle
	return true
}

func apply_setting(desc *setting_descriptor_t, value string, ex *exception_t) bool {
	switch desc.typ {
	case INT_T:
		var n, err = strconv.Atoi(value)
		if err != nil {
			exception_fill(ex, EINVAL, "Config", "configurator",
				"Invalid integer setting", desc.name)
			return false
		}
		*desc.ptr.(*int) = n

	case UINT_T:
		var n, err = strconv.ParseUint(value, 10, 32)
		if err != nil {
			exception_fill(ex, EINVAL, "Config", "configurator",
				"Invalid unsigned setting", desc.name)
			return false
		}
		*desc.ptr.(*uint) = uint(n)

	case NSIZE_T:
		var n, err = strconv.Atoi(value)
		if err != nil || n < 0 {
			exception_fill(ex, EINVAL, "Config", "configurator",
				"Invalid size setting", desc.name)
			return false
		}
		*desc.ptr.(*int) = n

	case CSTR_T, USTR_T:
		*desc.ptr.(*string) = value

	case DEBUG_T:
		var dl, ok = debug_level_from_string(value)
		if !ok {
			exception_fill(ex, EINVAL, "Config", "configurator",
				"Invalid debug level", value)
			return false
		}
		*desc.ptr.(*debug_level_t) = dl

	default:
		exception_fill(ex, EINVAL, "Config", "configurator",
			"Unknown setting type", desc.name)
		return false
	}
	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	load_configuration
 *
 * Purpose:	Read the XML document, resolve plugin providers and
 *		build their handles in configuration order.
 *
 *---------------------------------------------------------------*/

func load_configuration(path string, ex *exception_t) bool {
	var data, err = os.ReadFile(path)
	if err != nil {
		exception_fill(ex, ENOENT, "Config", "load_configuration",
			"Cannot read configuration", path)
		return false
	}
	return load_configuration_bytes(data, ex)
}

func load_configuration_bytes(data []byte, ex *exception_t) bool {
	var doc xml_configuration_t
	if err := xml.Unmarshal(data, &doc); err != nil {
		exception_fill(ex, EINVAL, "Config", "load_configuration",
			"Malformed configuration document", err.Error())
		return false
	}

	configuration.name = doc.Name

	/* Top-level settings. */
	var descriptor = []setting_descriptor_t{
		{"tick", UINT_T, &configuration.tick, "10", false},
		{"loglevel", DEBUG_T, &configuration.loglevel, "-", false},
	}
	var ctx = &settings_context_t{values: settings_map(&doc.Settings)}
	if !configurator(&configuration, descriptor, ctx, ex) {
		return false
	}

	/* Plugins, in document order. */
	for i := range doc.Plugins {
		var xp = &doc.Plugins[i]
		var pd = lookup_plugin_provider(xp.File, ex)
		if pd == nil {
			return false
		}

		var plugin = &plugin_t{
			name:       xp.Name,
			file:       xp.File,
			descriptor: pd,
		}
		if pd.get_plugin != nil {
			var pctx = &settings_context_t{values: settings_map(&xp.Settings)}
			plugin.handle = pd.get_plugin(xp.Name, configurator, pctx, ex)
			if plugin.handle == nil {
				return false
			}
		}

		for j := range xp.Instances {
			var xi = &xp.Instances[j]
			var inst = &instance_t{
				name:       xi.Name,
				descriptor: pd,
			}
			if pd.get_instance != nil {
				var ictx = &settings_context_t{values: settings_map(&xi.Settings)}
				inst.handle = pd.get_instance(plugin.handle, xi.Name, configurator, ictx, ex)
				if inst.handle == nil {
					return false
				}
			}
			plugin.instances = append(plugin.instances, inst)
		}
		configuration.plugins = append(configuration.plugins, plugin)
	}
	return true
}
