package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vedelegate-core/pkg/bip32"
	"vedelegate-core/pkg/bip39"
	"vedelegate-core/pkg/config"
)

// newCmd 代表 new 命令
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "创建一个新的钱包",
	Long:  `生成一个新的随机 BIP-39 助记词，并显示按 VeChain 派生路径得到的地址。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("正在生成新钱包...")
		fmt.Println("---------------------------------------------------")

		// 1. 生成助记词
		mnemonicService := bip39.NewMnemonicService()
		mnemonic, err := mnemonicService.GenerateMnemonic(256) // 24 words
		if err != nil {
			fmt.Printf("生成助记词失败: %v\n", err)
			return
		}
		fmt.Printf("助记词 (Mnemonic): \n%s\n", mnemonic)
		fmt.Println("---------------------------------------------------")

		// 2. 生成种子和 HD Wallet 主密钥
		seed := mnemonicService.MnemonicToSeed(mnemonic, "")
		wallet, err := bip32.NewMasterKeyFromSeed(seed)
		if err != nil {
			fmt.Printf("生成主密钥失败: %v\n", err)
			return
		}

		// 3. 按配置的派生路径得到 VeChain 地址
		path := config.Global.Wallet.Path
		key, err := wallet.DerivePath(path)
		if err != nil {
			fmt.Printf("派生密钥失败: %v\n", err)
			return
		}
		fmt.Printf("派生路径: %s\n", path)
		fmt.Printf("地址:     %s\n", key.Address())
		fmt.Println("---------------------------------------------------")
		fmt.Println("请妥善保管助记词，通过 WALLET_MNEMONIC 环境变量使用。")
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
