package borzoi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDlsapRegistry(t *testing.T) {
	dlsap_init()

	var ex exception_t
	var dls = &dls_t{name: "AX25"}
	require.True(t, dlsap_register_dls(dls, &ex))

	// Names are unique.
	var dup = &dls_t{name: "AX25"}
	assert.False(t, dlsap_register_dls(dup, &ex))
	assert.Equal(t, EEXIST, ex.erc)

	assert.Same(t, dls, dlsap_lookup_dls("AX25"))
	assert.Nil(t, dlsap_lookup_dls("nosuch"))

	// Unregistering someone else's registration is refused.
	assert.False(t, dlsap_unregister_dls(dup, &ex))
	assert.Equal(t, EINVAL, ex.erc)

	require.True(t, dlsap_unregister_dls(dls, &ex))
	assert.Nil(t, dlsap_lookup_dls("AX25"))

	exception_reset(&ex)
	assert.False(t, dlsap_unregister_dls(dls, &ex))
	assert.Equal(t, ENOENT, ex.erc)
}

func TestDlsapRegisterValidation(t *testing.T) {
	dlsap_init()

	var ex exception_t
	assert.False(t, dlsap_register_dls(nil, &ex))
	assert.False(t, dlsap_register_dls(&dls_t{}, &ex))
}

func TestDlsapNotProvided(t *testing.T) {
	dlsap_init()

	var ex exception_t
	var dls = &dls_t{name: "bare"}
	require.True(t, dlsap_register_dls(dls, &ex))

	// Absent capabilities are reported, not crashed on.
	assert.False(t, dlsap_set_default_local_addr(dls, "N0CALL", nil, &ex))
	assert.Contains(t, ex.message, "not provided")
	assert.False(t, dlsap_open(dls, nil, &ex))

	var prim = new_prim(0, DL, DL_CONNECT_REQUEST, 0, 0, &ex)
	assert.False(t, dlsap_write(dls, prim, false, &ex))
	del_prim(prim)

	// close and stats tolerate absence silently.
	dlsap_close(dls)
	var stats dls_stats_t
	dlsap_get_queue_stats(dls, &stats)
	assert.Equal(t, 0, stats.queue_size)
}

func TestDlsapDispatch(t *testing.T) {
	dlsap_init()

	var ex exception_t
	var got_addr string
	var dls = &dls_t{
		name: "spy",
		set_default_local_addr: func(dls *dls_t, addr string, norm *string, ex *exception_t) bool {
			got_addr = addr
			if norm != nil {
				*norm = addr
			}
			return true
		},
	}
	require.True(t, dlsap_register_dls(dls, &ex))

	var norm string
	require.True(t, dlsap_set_default_local_addr(dls, "DF9RY-7", &norm, &ex))
	assert.Equal(t, "DF9RY-7", got_addr)
	assert.Equal(t, "DF9RY-7", norm)

	// Writing a nil primitive is a caller bug, reported as such.
	assert.False(t, dlsap_write(dls, nil, false, &ex))
	assert.Equal(t, EINVAL, ex.erc)
}
