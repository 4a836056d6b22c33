package cmd

import (
	"github.com/spf13/cobra"
)

var (
	unstakeAmount    string
	unstakeToken     string
	unstakeRecipient string
)

// unstakeCmd 代表 unstake 命令
var unstakeCmd = &cobra.Command{
	Use:   "unstake",
	Short: "从质押池取回代币",
	Long: `从质押池取回指定数量的代币。
默认先转换回 B3TR 再转出，--token vot3 可以直接取回 VOT3；
--to 可以把代币直接转给其他地址。`,
	Run: func(cmd *cobra.Command, args []string) {
		runOperation("unstake", unstakeAmount, unstakeToken, unstakeRecipient)
	},
}

func init() {
	unstakeCmd.Flags().StringVar(&unstakeAmount, "amount", "", "取回数量 (显示单位)")
	unstakeCmd.Flags().StringVar(&unstakeToken, "token", "b3tr", "取回代币: b3tr 或 vot3")
	unstakeCmd.Flags().StringVar(&unstakeRecipient, "to", "", "收款地址 (默认签名人自己)")
	_ = unstakeCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(unstakeCmd)
}
