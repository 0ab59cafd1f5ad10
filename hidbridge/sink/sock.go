package sink

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

var (
	errNoAdapter  = errors.New("bluetooth: no adapter found")
	errInvalidMAC = errors.New("bluetooth: bad MAC address")
)

// setupSocket binds and listens on one L2CAP PSM of the local adapter.
func setupSocket(addr string, psm uint16) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if nil != err {
		err = fmt.Errorf("unix.Socket %s", err)
		return
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); nil != err {
		err = fmt.Errorf("unix.SetsockoptInt %s", err)
		return
	}

	sa, err := parseBluetoothSockaddr(addr, psm)
	if nil != err {
		return
	}
	if err = unix.Bind(fd, sa); nil != err {
		err = fmt.Errorf("unix.Bind %s", err)
		return
	}
	if err = unix.Listen(fd, 1); nil != err {
		err = fmt.Errorf("unix.Listen %s", err)
		return
	}
	return
}

func parseBluetoothSockaddr(addr string, psm uint16) (unix.Sockaddr, error) {
	hwAddr, _ := net.ParseMAC(addr)
	var d [6]byte
	if len(hwAddr) != 6 {
		return nil, errInvalidMAC
	}
	copy(d[:], hwAddr)
	sa := &unix.SockaddrL2{
		PSM:      psm,
		Addr:     d,
		AddrType: unix.BDADDR_BREDR,
	}
	return sa, nil
}
