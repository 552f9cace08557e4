package integration

import (
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gexec"
)

var _ = Describe("tensorsink launch", func() {
	var workspace string

	BeforeEach(func() {
		var err error
		workspace, err = ioutil.TempDir("", "tensorsink-launch-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(workspace)
	})

	start := func(args ...string) *gexec.Session {
		cmd := exec.Command(binary, append([]string{"--metrics-port=0"}, args...)...)
		session, err := gexec.Start(cmd, GinkgoWriter, GinkgoWriter)
		Expect(err).NotTo(HaveOccurred())

		return session
	}

	It("streams a small run to EOS and serializes every forwarded buffer", func() {
		output := filepath.Join(workspace, "buffers.msgpack")
		session := start("launch", "--source.num-buffers=5", "--source.width=8", "--source.height=8", "--output="+output, "--format=msgpack")

		Eventually(session, 30*time.Second).Should(gexec.Exit(0))

		data, err := ioutil.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())
		// Five 3x8x8 uint8 payloads plus envelope overhead.
		Expect(len(data)).To(BeNumerically(">", 5*3*8*8))
	})

	It("supports the cbor codec", func() {
		output := filepath.Join(workspace, "buffers.cbor")
		session := start("launch", "--source.num-buffers=2", "--source.width=8", "--source.height=8", "--output="+output, "--format=cbor")

		Eventually(session, 30*time.Second).Should(gexec.Exit(0))

		info, err := os.Stat(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Size()).To(BeNumerically(">", 0))
	})

	It("rejects unknown serialization formats", func() {
		session := start("launch", "--format=protobuf")

		Eventually(session, 30*time.Second).Should(gexec.Exit(1))
	})
})
