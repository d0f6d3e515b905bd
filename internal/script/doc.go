// Package script runs upload callbacks written in Lua.
//
// A script defines either or both of two global functions:
//
//	function callbackOK(response, insert)
//	    insert(response.data.url)
//	end
//
//	function callbackKO(err)
//	    alert("upload failed (" .. err.code .. "): " .. err.body)
//	end
//
// callbackOK receives the parsed JSON body of a successful upload as Lua
// values (objects become tables keyed by name, arrays become sequences) and
// the insert function. Not calling insert inserts nothing. callbackKO
// receives a table with code, type, body and message fields.
//
// # Sandbox
//
// Only the base, table, string and math libraries are opened. Functions
// that load code or modules (dofile, load, require and the like) are
// removed. The script may call:
//
//	alert(message)  show message through the configured Notifier
//	print(...)      log the arguments at info level
//
// Every call into the script is bounded by a timeout (DefaultCallTimeout).
//
// # Thread Safety
//
// A gopher-lua state is not goroutine-safe. Callbacks serializes every
// call with a mutex; the handler already invokes callbacks from scheduler
// turns only.
package script
