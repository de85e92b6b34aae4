package filter_test

import (
	"net/http"
	"net/netip"
	"testing"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/matryer/is"
)

func TestPorts(t *testing.T) {
	is := is.New(t)

	r, err := filter.ParsePorts("8000-8999")
	is.NoErr(err)
	is.Equal(r, filter.Ports{Lo: 8000, Hi: 8999})
	is.Equal(r.String(), "8000-8999")

	for _, bad := range []string{"", "0", "x", "9000-8000", "70000"} {
		_, err := filter.ParsePorts(bad)
		is.True(err != nil)
	}

	dst := func(port uint16) netip.AddrPort {
		return netip.AddrPortFrom(netip.MustParseAddr("192.0.2.1"), port)
	}
	is.Equal(r.Match(dst(8080)), boolean.True)
	is.Equal(r.Match(dst(443)), boolean.False)
	is.Equal(r.Match(dst(0)), boolean.Indefinite)
	is.Equal(r.Match(netip.AddrPort{}), boolean.Indefinite)
	is.Equal(filter.Port(443).Match(dst(443)), boolean.True)
}

func TestNetwork(t *testing.T) {
	is := is.New(t)

	n, err := filter.ParseNetwork("10.1.2.3/8")
	is.NoErr(err)
	is.Equal(n.String(), "10.0.0.0/8")

	in := netip.MustParseAddrPort("10.200.0.1:443")
	mapped := netip.MustParseAddrPort("[::ffff:10.200.0.1]:443")
	out := netip.MustParseAddrPort("192.0.2.1:443")
	is.Equal(n.Match(in), boolean.True)
	is.Equal(n.Match(mapped), boolean.True)
	is.Equal(n.Match(out), boolean.False)
	is.Equal(n.Match(netip.AddrPort{}), boolean.Indefinite)

	single, err := filter.ParseNetwork("::1")
	is.NoErr(err)
	is.Equal(single.String(), "::1/128")
	is.Equal(single.Match(netip.MustParseAddrPort("[::1]:80")), boolean.True)

	_, err = filter.ParseNetwork("not an address")
	is.True(err != nil)
}

func TestGlob(t *testing.T) {
	is := is.New(t)

	g := filter.MustCompileGlob("*.example.com")
	tests := []struct {
		name filter.TLSName
		want boolean.Maybe
	}{
		{filter.TLSName{Name: "www.example.com"}, boolean.True},
		{filter.TLSName{Name: "WWW.Example.COM."}, boolean.True},
		{filter.TLSName{Name: "example.com"}, boolean.False},
		{filter.TLSName{Name: "a.b.example.com"}, boolean.False},
		{filter.TLSName{Name: "www.example.org"}, boolean.False},
		{filter.TLSName{}, boolean.Indefinite},
		// fragments: the leading label may be cut short
		{filter.TLSName{Name: "ample.com", Partial: true}, boolean.Indefinite},
		{filter.TLSName{Name: "w.example.com", Partial: true}, boolean.Indefinite},
		{filter.TLSName{Name: "ample.org", Partial: true}, boolean.False},
		{filter.TLSName{Name: "a.www.example.com", Partial: true}, boolean.False},
	}
	for _, tt := range tests {
		is.Equal(g.Match(tt.name), tt.want)
	}

	idn := filter.MustCompileGlob("*.bücher.example")
	is.Equal(idn.Key(), "*.xn--bcher-kva.example")
	is.Equal(idn.Match(filter.TLSName{Name: "www.xn--bcher-kva.example"}), boolean.True)
	is.Equal(idn.Match(filter.TLSName{Name: "www.BÜCHER.example"}), boolean.True)

	_, err := filter.CompileGlob("")
	is.True(err != nil)
}

func TestPattern(t *testing.T) {
	is := is.New(t)

	p := filter.MustCompilePattern(`.*\.example\.com`)
	is.Equal(p.Match("www.example.com"), boolean.True)
	is.Equal(p.Match("WWW.EXAMPLE.COM"), boolean.True)
	is.Equal(p.Match("www.example.com.evil"), boolean.False) // anchored
	is.Equal(p.Match(""), boolean.Indefinite)
	is.Equal(p.Match("www.example.com."), boolean.True)

	// host names ignore case on both sides
	upper := filter.MustCompilePattern(`WWW\.Example\.com`)
	is.Equal(upper.Match("WWW.Example.com"), boolean.True)
	is.Equal(upper.Match("www.example.com"), boolean.True)
	is.Equal(upper.Match("www.example.org"), boolean.False)
	is.True(!upper.MatchString("www.example.com")) // other fields keep case

	_, err := filter.CompilePattern("(")
	is.True(err != nil)
}

func TestRequestMatchers(t *testing.T) {
	is := is.New(t)

	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/v1/upload", nil)
	is.NoErr(err)
	req.Header.Set("User-Agent", "curl/8.4.0")

	method := filter.MethodPattern{Pattern: filter.MustCompilePattern("POST|PUT")}
	url := filter.URLPattern{Pattern: filter.MustCompilePattern(`https://api\.example\.com/v1/.*`)}
	header := filter.HeaderPattern{
		Name:  filter.MustCompilePattern("user-agent"),
		Value: filter.MustCompilePattern("curl/.*"),
	}

	is.Equal(method.Match(req), boolean.True)
	is.Equal(url.Match(req), boolean.True)
	is.Equal(header.Match(req), boolean.True)

	req.Header.Set("User-Agent", "Mozilla/5.0")
	is.Equal(header.Match(req), boolean.False)

	is.Equal(method.Match(nil), boolean.Indefinite)
	is.Equal(url.Match(nil), boolean.Indefinite)
	is.Equal(header.Match(nil), boolean.Indefinite)

	// origin form requests take the host from the request
	origin, err := http.ReadRequest(bufioReader("GET /v1/items HTTP/1.1\r\nHost: api.example.com\r\n\r\n"))
	is.NoErr(err)
	is.Equal(url.Match(origin), boolean.False) // plain http
	is.Equal(filter.URLPattern{Pattern: filter.MustCompilePattern(`http://api\.example\.com/v1/items`)}.Match(origin), boolean.True)
}

func TestDirection(t *testing.T) {
	is := is.New(t)

	is.Equal(filter.Request.Match(filter.Request), boolean.True)
	is.Equal(filter.Request.Match(filter.Response), boolean.False)
	is.Equal(filter.Request.Match(filter.Both), boolean.Indefinite)
	is.Equal(filter.Both.Match(filter.Both), boolean.True)
}
